// Package envvars assembles the environment a job worker receives and
// encrypts it for storage or transport.
package envvars

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// RequestContext is the authenticated request a job was submitted with.
// Authentication itself happens upstream; only the token is consumed here.
type RequestContext interface {
	BearerToken() string
}

// Job exposes the identifier of the job being launched.
type Job interface {
	JobID() string
}

// Program exposes the arguments a caller submitted with the program.
type Program interface {
	ProgramArguments() types.Value
}

// Token is a RequestContext holding a bare token.
type Token string

// BearerToken returns t.
func (t Token) BearerToken() string { return string(t) }

// JobRef is a Job with a fixed id.
type JobRef struct {
	ID string
}

// JobID returns j.ID.
func (j JobRef) JobID() string { return j.ID }

// ProgramRef is a Program with fixed arguments.
type ProgramRef struct {
	Arguments types.Value
}

// ProgramArguments returns p.Arguments.
func (p ProgramRef) ProgramArguments() types.Value { return p.Arguments }

// ProgramFromAny converts decoded JSON or plain Go values into a
// ProgramRef. Values with no JSON form fail with types.ErrUnsupportedValue.
func ProgramFromAny(args any) (ProgramRef, error) {
	v, err := types.ValueOf(args)
	if err != nil {
		return ProgramRef{}, fmt.Errorf("failed to convert program arguments: %w", err)
	}
	return ProgramRef{Arguments: v}, nil
}

// Builder assembles environment bundles for jobs.
type Builder struct {
	host      string
	extension CredentialExtension
	logger    *zap.Logger
}

// NewBuilder creates a Builder from cfg. The credential extension is chosen
// once here from cfg.Auth.Mechanism.
func NewBuilder(cfg *types.Config, logger *zap.Logger) (*Builder, error) {
	ext, err := ExtensionFor(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		host:      cfg.Gateway.Host,
		extension: ext,
		logger:    logger,
	}, nil
}

// Extension returns the credential extension in use.
func (b *Builder) Extension() CredentialExtension {
	return b.extension
}

// Build returns the environment for job. A nil req yields an empty token;
// a nil program yields null arguments. The token is not validated.
func (b *Builder) Build(req RequestContext, job Job, program Program) types.Bundle {
	var token, jobID string
	if req != nil {
		token = req.BearerToken()
	}
	if job != nil {
		jobID = job.JobID()
	}
	args := types.Null()
	if program != nil {
		args = program.ProgramArguments().Clone()
	}

	bundle := types.Bundle{
		types.EnvGatewayToken: types.String(token),
		types.EnvGatewayHost:  types.String(b.host),
		types.EnvJobID:        types.String(jobID),
		types.EnvJobArguments: args,
	}
	b.extension.Extend(token, bundle)

	b.logger.Debug("built job environment",
		zap.String("job_id", jobID),
		zap.String("extension", b.extension.Name()),
		zap.Int("variables", len(bundle)),
	)
	return bundle
}
