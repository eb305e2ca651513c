// Package resolver supplies the IP address the client connects to. Name
// resolution is a collaborator of the client, not part of the exchange
// itself: the exchange only ever sees an "ip:port" endpoint.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ErrNoAddress is returned when a host resolves to no usable address.
var ErrNoAddress = errors.New("no address for host")

// Resolver maps a host name to one IP address.
type Resolver interface {
	// Resolve returns the address to connect to for host. An empty host
	// means the local machine.
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// SystemResolver resolves through the operating system. For an empty host it
// looks up the machine's own host name. IPv4 addresses win over IPv6 ones.
type SystemResolver struct {
	Resolver *net.Resolver
	Hostname func() (string, error)
}

// NewSystemResolver returns a SystemResolver backed by net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{
		Resolver: net.DefaultResolver,
		Hostname: os.Hostname,
	}
}

// Resolve implements Resolver.
func (r *SystemResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if host == "" {
		name, err := r.Hostname()
		if err != nil {
			return nil, fmt.Errorf("local host name: %w", err)
		}
		host = name
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	addrs, err := r.Resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}

	for _, ip := range addrs {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0], nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// Endpoint resolves host with r and joins the result with port.
//
// Parameters:
//   - ctx: Context for cancellation of the lookup
//   - r: The resolver to use
//   - host: Host name or literal IP; empty means the local machine
//   - port: TCP port
//
// Returns:
//   - The "ip:port" string to dial
//   - An error if resolution fails
func Endpoint(ctx context.Context, r Resolver, host string, port int) (string, error) {
	ip, err := r.Resolve(ctx, host)
	if err != nil {
		return "", err
	}

	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}
