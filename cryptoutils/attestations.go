package cryptoutils

import (
	"encoding/hex"
	"fmt"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"
)

// TDXMeasurements are the hex-encoded measurement registers extracted
// from a verified TDX quote: MRTD, the four RTMRs, and the owner and
// config measurements. They identify the code that produced a result.
type TDXMeasurements struct {
	MrTd          string
	Rtmrs         [4]string
	MrConfigId    string
	MrOwner       string
	MrOwnerConfig string
	ReportData    string
}

// VerifyTDXQuote parses and verifies a raw DCAP TDX quote and returns
// its measurements. Verification uses the default collateral options;
// callers pin measurements against expected values themselves.
func VerifyTDXQuote(rawQuote []byte) (*TDXMeasurements, error) {
	protoQuote, err := tdx_abi.QuoteToProto(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	if err := verify.TdxQuote(protoQuote, verify.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	m := &TDXMeasurements{
		MrTd:          hex.EncodeToString(v4Quote.TdQuoteBody.MrTd),
		MrConfigId:    hex.EncodeToString(v4Quote.TdQuoteBody.MrConfigId),
		MrOwner:       hex.EncodeToString(v4Quote.TdQuoteBody.MrOwner),
		MrOwnerConfig: hex.EncodeToString(v4Quote.TdQuoteBody.MrOwnerConfig),
		ReportData:    hex.EncodeToString(v4Quote.TdQuoteBody.ReportData),
	}
	for i := 0; i < 4 && i < len(v4Quote.TdQuoteBody.Rtmrs); i++ {
		m.Rtmrs[i] = hex.EncodeToString(v4Quote.TdQuoteBody.Rtmrs[i])
	}

	return m, nil
}
