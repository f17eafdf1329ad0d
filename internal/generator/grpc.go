// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package generator

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	qerrors "querycraft/cli/internal/errors"
)

// GenerateMethod is the unary RPC the gRPC backend calls. Request and response
// are google.protobuf.Struct values: {question, language, schema} in and {sql} out.
const GenerateMethod = "/querycraft.v1.SQLGenerator/Generate"

// GRPCConfig configures the gRPC backend.
type GRPCConfig struct {
	// Target is host:port; port 443 is assumed when missing.
	Target string
	APIKey string
	// Insecure disables TLS, for local model servers.
	Insecure bool
}

// GRPC implements Generator with a unary call over a shared connection.
type GRPC struct {
	conn   *grpc.ClientConn
	apiKey string
}

// DialGRPC creates the client connection. Extra options are appended after the
// transport credentials.
func DialGRPC(cfg GRPCConfig, opts ...grpc.DialOption) (*GRPC, error) {
	target := cfg.Target
	var creds credentials.TransportCredentials
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	} else {
		// Derive SNI and ensure default port if missing
		host := target
		if h, _, err := net.SplitHostPort(target); err == nil {
			host = h
		} else if !strings.Contains(target, "://") {
			target = net.JoinHostPort(target, "443")
		}
		creds = credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	}

	conn, err := grpc.NewClient(target, append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gRPC client for %s: %w", cfg.Target, err)
	}
	return &GRPC{conn: conn, apiKey: cfg.APIKey}, nil
}

// Generate calls GenerateMethod and returns the "sql" field of the response.
func (g *GRPC) Generate(ctx context.Context, question, language, schema string) (string, error) {
	in, err := structpb.NewStruct(map[string]any{
		"question": question,
		"language": language,
		"schema":   schema,
	})
	if err != nil {
		return "", qerrors.Wrap(qerrors.Generation, "SQL generation request failed.", err)
	}
	if g.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+g.apiKey)
	}

	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, GenerateMethod, in, out); err != nil {
		return "", grpcError(err)
	}

	v, ok := out.GetFields()["sql"]
	if !ok {
		return "", qerrors.Wrap(qerrors.Generation, "The SQL generator returned an empty response.",
			fmt.Errorf("%w: response has no sql field", ErrEmptyCompletion))
	}
	return v.GetStringValue(), nil
}

// Close closes the connection.
func (g *GRPC) Close() error { return g.conn.Close() }

func grpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return transportError(err)
	}
	var msg string
	switch st.Code() {
	case codes.DeadlineExceeded:
		msg = "SQL generation timed out."
	case codes.Canceled:
		msg = "SQL generation was cancelled."
	case codes.Unavailable:
		msg = "The SQL generation service is unavailable."
	case codes.Unauthenticated, codes.PermissionDenied:
		msg = "The SQL generation service rejected the API key."
	case codes.ResourceExhausted:
		msg = "The SQL generation service is rate limiting requests."
	default:
		msg = "SQL generation failed."
	}
	return qerrors.Wrap(qerrors.Generation, msg, err)
}
