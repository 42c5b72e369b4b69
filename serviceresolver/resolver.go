// Package serviceresolver resolves provider endpoints through DNS SRV
// records. Backend location URIs can name a service domain instead of
// a concrete host, and the factories use this package to pick an
// endpoint before dialing.
package serviceresolver

import (
	"fmt"
	"net"

	"github.com/miekg/dns"
)

// DefaultResolverAddr is the systemd-resolved stub listener. Override
// it on the Resolver for custom deployments.
const DefaultResolverAddr = "127.0.0.53:53"

// Endpoint is a single SRV target.
type Endpoint struct {
	Host string
	Port uint16
}

// Addr returns the host:port form.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port))
}

// Resolver performs SRV lookups against a fixed DNS server.
type Resolver struct {
	// Addr is the DNS server address, host:port. Defaults to the local
	// stub resolver.
	Addr string

	client *dns.Client
}

// NewResolver creates a resolver using the local stub listener.
func NewResolver() *Resolver {
	return &Resolver{Addr: DefaultResolverAddr, client: new(dns.Client)}
}

// Resolve returns all SRV targets registered for the domain, in answer
// order. Targets keep their trailing dot stripped so they can be used
// directly in URLs.
func (r *Resolver) Resolve(domain string) ([]Endpoint, error) {
	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = true
	m.Question = []dns.Question{{Name: dns.Fqdn(domain), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}}

	client := r.client
	if client == nil {
		client = new(dns.Client)
	}
	addr := r.Addr
	if addr == "" {
		addr = DefaultResolverAddr
	}

	in, _, err := client.Exchange(m, addr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	endpoints := make([]Endpoint, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoints = append(endpoints, Endpoint{
				Host: trimDot(srv.Target),
				Port: srv.Port,
			})
		}
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", domain)
	}
	return endpoints, nil
}

// ResolveFirst returns the first SRV target for the domain.
func (r *Resolver) ResolveFirst(domain string) (Endpoint, error) {
	endpoints, err := r.Resolve(domain)
	if err != nil {
		return Endpoint{}, err
	}
	return endpoints[0], nil
}

func trimDot(name string) string {
	if len(name) > 0 && name[len(name)-1] == '.' {
		return name[:len(name)-1]
	}
	return name
}
