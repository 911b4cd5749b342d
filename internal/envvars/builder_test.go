package envvars

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qserverless/gatewayenv/pkg/types"
)

func answerProgram() ProgramRef {
	return ProgramRef{Arguments: types.MustParseValue(`{"answer": 42}`)}
}

func TestBuildDefault(t *testing.T) {
	b, err := NewBuilder(types.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "none", b.Extension().Name())

	got := b.Build(Token("42"), JobRef{ID: "42"}, answerProgram())

	want := types.Bundle{
		"ENV_JOB_GATEWAY_TOKEN": types.String("42"),
		"ENV_JOB_GATEWAY_HOST":  types.String("http://localhost:8000"),
		"ENV_JOB_ID_GATEWAY":    types.String("42"),
		"ENV_JOB_ARGUMENTS":     types.Map(map[string]types.Value{"answer": types.Int(42)}),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCustomToken(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Auth.Mechanism = types.AuthCustomToken
	cfg.Crypto.SecretKey = "super-secret"

	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "provider", b.Extension().Name())

	got := b.Build(Token("42"), JobRef{ID: "42"}, answerProgram())

	want := types.Bundle{
		"ENV_JOB_GATEWAY_TOKEN": types.String("42"),
		"ENV_JOB_GATEWAY_HOST":  types.String("http://localhost:8000"),
		"ENV_JOB_ID_GATEWAY":    types.String("42"),
		"ENV_JOB_ARGUMENTS":     types.MustParseValue(`{"answer":42}`),
		"QISKIT_IBM_TOKEN":      types.String("42"),
		"QISKIT_IBM_CHANNEL":    types.String("ibm_quantum"),
		"QISKIT_IBM_URL":        types.String("https://auth.quantum-computing.ibm.com/api"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildProviderTokenFollowsGatewayToken(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Auth.Mechanism = types.AuthCustomToken
	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)

	for _, token := range []string{"42", "", "another-token"} {
		got := b.Build(Token(token), JobRef{ID: "1"}, nil)
		assert.True(t, got[types.EnvProviderToken].Equal(got[types.EnvGatewayToken]), token)
		assert.True(t, got[types.EnvGatewayToken].Equal(types.String(token)), token)
	}
}

func TestBuildConfiguredHostAndProvider(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Gateway.Host = "https://gateway.example.com"
	cfg.Auth.Mechanism = types.AuthCustomToken
	cfg.Provider.Channel = "ibm_cloud"
	cfg.Provider.URL = "https://cloud.example.com/api"

	b, err := NewBuilder(cfg, nil)
	require.NoError(t, err)
	got := b.Build(Token("t"), JobRef{ID: "j"}, nil)

	assert.Equal(t, "https://gateway.example.com", got[types.EnvGatewayHost].Text())
	assert.Equal(t, "ibm_cloud", got[types.EnvProviderChannel].Text())
	assert.Equal(t, "https://cloud.example.com/api", got[types.EnvProviderURL].Text())
}

func TestBuildMissingInputs(t *testing.T) {
	b, err := NewBuilder(types.DefaultConfig(), nil)
	require.NoError(t, err)

	got := b.Build(nil, JobRef{ID: "7"}, nil)
	assert.Equal(t, []string{
		types.EnvGatewayHost,
		types.EnvGatewayToken,
		types.EnvJobArguments,
		types.EnvJobID,
	}, got.Keys())
	assert.True(t, got[types.EnvGatewayToken].Equal(types.String("")))
	assert.True(t, got[types.EnvJobArguments].IsNull())
}

func TestBuildCopiesArguments(t *testing.T) {
	b, err := NewBuilder(types.DefaultConfig(), nil)
	require.NoError(t, err)

	args := map[string]types.Value{"answer": types.Int(42)}
	program := ProgramRef{Arguments: types.Map(args)}
	got := b.Build(Token("42"), JobRef{ID: "42"}, program)

	fields, ok := got[types.EnvJobArguments].Fields()
	require.True(t, ok)
	fields["answer"] = types.Int(0)

	again, ok := got[types.EnvJobArguments].Get("answer")
	require.True(t, ok)
	assert.Equal(t, "42", again.Text())
}

func TestNewBuilderUnknownMechanism(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Auth.Mechanism = "oauth"

	_, err := NewBuilder(cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownMechanism)
}

func TestProgramFromAny(t *testing.T) {
	p, err := ProgramFromAny(map[string]any{"answer": 42, "tags": []any{"a", true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":42,"tags":["a",true,null]}`, p.Arguments.String())

	_, err = ProgramFromAny(map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, types.ErrUnsupportedValue)
}
