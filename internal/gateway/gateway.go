// Package gateway wraps the AWS SES v2 API as the send pipeline's single
// outbound email channel, grounded on the SES sender used for ESP delivery
// in the project this pattern is adapted from.
package gateway

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// ErrKind distinguishes a pre-send construction failure from a
// provider-reported one, per spec.md's two SendError shapes.
type ErrKind string

const (
	// ErrKindBuild means the outbound message could not be constructed.
	ErrKindBuild ErrKind = "build"
	// ErrKindSDK means SES rejected the send.
	ErrKindSDK ErrKind = "sdk"
)

// SendError is returned by Send on any failure, carrying which shape of
// failure occurred so the Dispatcher can record it without inspecting
// error strings.
type SendError struct {
	Kind ErrKind
	Err  error
}

func (e *SendError) Error() string { return fmt.Sprintf("gateway %s error: %v", e.Kind, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

func buildErr(err error) error { return &SendError{Kind: ErrKindBuild, Err: err} }
func sdkErr(err error) error   { return &SendError{Kind: ErrKindSDK, Err: err} }

// Gateway is a process-wide handle to SES v2, safe for concurrent use by
// any number of Dispatcher sub-tasks: the underlying sesv2.Client holds no
// per-call lock.
type Gateway struct {
	client *sesv2.Client
}

// New creates a Gateway for the given AWS region. Construction happens once
// at startup (not lazily per spec.md's "initialized on first use", which
// this implementation simplifies to eager construction since the pipeline
// always needs a working gateway to run at all).
func New(ctx context.Context, region string) (*Gateway, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Gateway{client: sesv2.NewFromConfig(cfg)}, nil
}

// Send issues one SES send and returns the provider message ID. errors are
// always a *SendError.
func (g *Gateway) Send(ctx context.Context, from, to, subject, htmlBody string) (string, error) {
	if to == "" {
		return "", buildErr(fmt.Errorf("recipient address is empty"))
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := g.client.SendEmail(ctx, input)
	if err != nil {
		return "", sdkErr(err)
	}
	if out.MessageId == nil {
		return "", sdkErr(fmt.Errorf("ses accepted send but returned no message id"))
	}
	return *out.MessageId, nil
}
