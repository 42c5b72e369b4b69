package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/verifiable-backends/cmd/flags"
	"github.com/ruteri/verifiable-backends/common"
	"github.com/ruteri/verifiable-backends/compute"
	"github.com/ruteri/verifiable-backends/cryptoutils"
	"github.com/ruteri/verifiable-backends/interfaces"
	"github.com/ruteri/verifiable-backends/serviceresolver"
	"github.com/ruteri/verifiable-backends/storage"
)

var flagBackend = &cli.StringFlag{
	Name:     "backend",
	Required: true,
	Usage:    "backend location URI, e.g. eigenai://?api-key-env=EIGENAI_API_KEY or ipfs://localhost:5001/",
}

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 2 * time.Minute,
	Usage: "overall operation deadline",
}

var flagTaskFile = &cli.StringFlag{
	Name:  "task-file",
	Usage: "path to a JSON task description, '-' for stdin",
}

var flagTask = &cli.StringFlag{
	Name:  "task",
	Usage: "inline JSON task description",
}

var flagWait = &cli.BoolFlag{
	Name:  "wait",
	Value: true,
	Usage: "poll until the job reaches a terminal state",
}

var flagFile = &cli.StringFlag{
	Name:  "file",
	Usage: "path to the content to store, '-' for stdin",
}

var flagMeta = &cli.StringSliceFlag{
	Name:  "meta",
	Usage: "content metadata as key=value, repeatable",
}

var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "write retrieved content to this file instead of stdout",
}

var flagResultFile = &cli.StringFlag{
	Name:     "result-file",
	Required: true,
	Usage:    "path to a JSON compute result to verify, '-' for stdin",
}

func main() {
	app := &cli.App{
		Name:    "vcadm",
		Usage:   "operate verifiable compute and storage backends from the command line",
		Version: common.Version,
		Flags: []cli.Flag{
			flags.LogDebugFlag,
			flags.DNSResolverFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "compute",
				Usage: "submit and track compute jobs",
				Flags: []cli.Flag{flagBackend, flagTimeout},
				Subcommands: []*cli.Command{
					{
						Name:   "submit",
						Usage:  "submit a task and print the job id",
						Flags:  []cli.Flag{flagTaskFile, flagTask},
						Action: runComputeSubmit,
					},
					{
						Name:      "status",
						Usage:     "print the job's lifecycle state",
						ArgsUsage: "<job-id>",
						Action:    runComputeStatus,
					},
					{
						Name:      "result",
						Usage:     "fetch the job's output and proof",
						ArgsUsage: "<job-id>",
						Flags:     []cli.Flag{flagWait},
						Action:    runComputeResult,
					},
					{
						Name:      "cancel",
						Usage:     "request job cancellation",
						ArgsUsage: "<job-id>",
						Action:    runComputeCancel,
					},
				},
			},
			{
				Name:  "storage",
				Usage: "store and retrieve content with proofs",
				Flags: []cli.Flag{flagBackend, flagTimeout},
				Subcommands: []*cli.Command{
					{
						Name:   "put",
						Usage:  "store content and print its URI and proof",
						Flags:  []cli.Flag{flagFile, flagMeta},
						Action: runStoragePut,
					},
					{
						Name:      "get",
						Usage:     "retrieve content by URI",
						ArgsUsage: "<uri>",
						Flags:     []cli.Flag{flagOut},
						Action:    runStorageGet,
					},
					{
						Name:      "exists",
						Usage:     "check whether content is retrievable",
						ArgsUsage: "<uri>",
						Action:    runStorageExists,
					},
					{
						Name:      "proof",
						Usage:     "fetch the storage proof without the content",
						ArgsUsage: "<uri>",
						Action:    runStorageProof,
					},
				},
			},
			{
				Name:   "verify-proof",
				Usage:  "verify a compute result proof offline",
				Flags:  []cli.Flag{flagResultFile},
				Action: runVerifyProof,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cliLogger(cCtx *cli.Context) *slog.Logger {
	if cCtx.Bool(flags.LogDebugFlag.Name) {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cliResolver(cCtx *cli.Context) *serviceresolver.Resolver {
	resolver := serviceresolver.NewResolver()
	if addr := cCtx.String(flags.DNSResolverFlag.Name); addr != "" {
		resolver.Addr = addr
	}
	return resolver
}

func computeBackend(cCtx *cli.Context) (interfaces.ComputeBackend, error) {
	loc, err := interfaces.ParseBackendLocation(cCtx.String(flagBackend.Name))
	if err != nil {
		return nil, fmt.Errorf("could not parse backend URI: %w", err)
	}
	return compute.NewFactory(cliLogger(cCtx), cliResolver(cCtx)).ComputeBackendFor(loc)
}

func storageBackend(cCtx *cli.Context) (interfaces.StorageBackend, error) {
	loc, err := interfaces.ParseBackendLocation(cCtx.String(flagBackend.Name))
	if err != nil {
		return nil, fmt.Errorf("could not parse backend URI: %w", err)
	}
	return storage.NewFactory(cliLogger(cCtx), cliResolver(cCtx)).StorageBackendFor(loc)
}

func opContext(cCtx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cCtx.Duration(flagTimeout.Name))
}

func requireArg(cCtx *cli.Context, name string) (string, error) {
	arg := cCtx.Args().First()
	if arg == "" {
		return "", fmt.Errorf("missing required argument <%s>", name)
	}
	return arg, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runComputeSubmit(cCtx *cli.Context) error {
	var raw []byte
	var err error
	switch {
	case cCtx.String(flagTask.Name) != "":
		raw = []byte(cCtx.String(flagTask.Name))
	case cCtx.String(flagTaskFile.Name) != "":
		raw, err = readInput(cCtx.String(flagTaskFile.Name))
		if err != nil {
			return fmt.Errorf("could not read task: %w", err)
		}
	default:
		return fmt.Errorf("either --task or --task-file is required")
	}

	var task interfaces.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return fmt.Errorf("task is not valid JSON: %w", err)
	}

	backend, err := computeBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	jobID, err := backend.Submit(ctx, task)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"job_id": jobID, "backend": backend.Name()})
}

func runComputeStatus(cCtx *cli.Context) error {
	jobID, err := requireArg(cCtx, "job-id")
	if err != nil {
		return err
	}
	backend, err := computeBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	status, err := backend.Status(ctx, jobID)
	if err != nil {
		return err
	}
	return printJSON(status)
}

func runComputeResult(cCtx *cli.Context) error {
	jobID, err := requireArg(cCtx, "job-id")
	if err != nil {
		return err
	}
	backend, err := computeBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	result, err := backend.Result(ctx, jobID, cCtx.Bool(flagWait.Name))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runComputeCancel(cCtx *cli.Context) error {
	jobID, err := requireArg(cCtx, "job-id")
	if err != nil {
		return err
	}
	backend, err := computeBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	cancelled, err := backend.Cancel(ctx, jobID)
	if err != nil {
		return err
	}
	return printJSON(map[string]bool{"cancelled": cancelled})
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

func runStoragePut(cCtx *cli.Context) error {
	path := cCtx.String(flagFile.Name)
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	content, err := readInput(path)
	if err != nil {
		return fmt.Errorf("could not read content: %w", err)
	}
	meta, err := parseMeta(cCtx.StringSlice(flagMeta.Name))
	if err != nil {
		return err
	}

	backend, err := storageBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	result, err := backend.Put(ctx, content, meta)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runStorageGet(cCtx *cli.Context) error {
	uri, err := requireArg(cCtx, "uri")
	if err != nil {
		return err
	}
	backend, err := storageBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	content, err := backend.Get(ctx, uri)
	if err != nil {
		return err
	}

	if out := cCtx.String(flagOut.Name); out != "" {
		return os.WriteFile(out, content, 0o644)
	}
	_, err = os.Stdout.Write(content)
	return err
}

func runStorageExists(cCtx *cli.Context) error {
	uri, err := requireArg(cCtx, "uri")
	if err != nil {
		return err
	}
	backend, err := storageBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	exists, err := backend.Exists(ctx, uri)
	if err != nil {
		return err
	}
	return printJSON(map[string]bool{"exists": exists})
}

func runStorageProof(cCtx *cli.Context) error {
	uri, err := requireArg(cCtx, "uri")
	if err != nil {
		return err
	}
	backend, err := storageBackend(cCtx)
	if err != nil {
		return err
	}
	ctx, cancel := opContext(cCtx)
	defer cancel()

	proof, err := backend.GetProof(ctx, uri)
	if err != nil {
		return err
	}
	return printJSON(proof)
}

func runVerifyProof(cCtx *cli.Context) error {
	raw, err := readInput(cCtx.String(flagResultFile.Name))
	if err != nil {
		return fmt.Errorf("could not read result: %w", err)
	}

	var result interfaces.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("result is not valid JSON: %w", err)
	}

	if err := cryptoutils.VerifyComputeProof(result.Proof); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	fmt.Println("proof ok:", result.Proof.Method)
	return nil
}
