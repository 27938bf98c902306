package config

import (
	"reflect"
	"testing"
)

func TestValidateArg(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{"plain flag", "--verbose", false},
		{"key value", "--port=8080", false},
		{"path", "./servers/weather.csx", false},
		{"empty", "", false},
		{"semicolon", "foo; rm -rf /", true},
		{"and chain", "foo && bar", true},
		{"or chain", "foo || bar", true},
		{"pipe", "cat | sh", true},
		{"backtick", "`whoami`", true},
		{"subshell", "$(whoami)", true},
		{"brace expansion", "${HOME}", true},
		{"newline", "foo\nbar", true},
		{"carriage return", "foo\rbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArg(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArg(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr bool
	}{
		{"simple", "DEBUG=1", false},
		{"empty value", "EMPTY=", false},
		{"underscore key", "_PRIVATE=x", false},
		{"substitution", "TOKEN=${GITHUB_TOKEN}", false},
		{"value with equals", "OPTS=a=b", false},
		{"missing equals", "NOTAPAIR", true},
		{"empty key", "=value", true},
		{"key with dash", "MY-KEY=x", true},
		{"key starting with digit", "1KEY=x", true},
		{"injection in value", "CMD=foo; rm -rf /", true},
		{"backtick in value", "CMD=`id`", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnv(tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEnv(%q) error = %v, wantErr %v", tt.env, err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MCP_EVALS_TEST_TOKEN", "s3cret")

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil input", nil, nil},
		{"no substitution", []string{"A=1"}, []string{"A=1"}},
		{"known variable", []string{"TOKEN=${MCP_EVALS_TEST_TOKEN}"}, []string{"TOKEN=s3cret"}},
		{"unknown variable", []string{"TOKEN=${MCP_EVALS_TEST_MISSING}"}, []string{"TOKEN="}},
		{"bare dollar untouched", []string{"A=$MCP_EVALS_TEST_TOKEN"}, []string{"A=$MCP_EVALS_TEST_TOKEN"}},
		{
			"mixed",
			[]string{"A=1", "B=x-${MCP_EVALS_TEST_TOKEN}-y"},
			[]string{"A=1", "B=x-s3cret-y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandEnv(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsSensitiveEnvKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"OPENAI_API_KEY", true},
		{"github_token", true},
		{"DB_PASSWORD", true},
		{"MY_SECRET", true},
		{"AUTH_CREDENTIAL", true},
		{"DEBUG", false},
		{"PATH", false},
		{"TIMEOUT", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitiveEnvKey(tt.key); got != tt.want {
				t.Errorf("IsSensitiveEnvKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestRedactEnv(t *testing.T) {
	in := []string{"DEBUG=1", "OPENAI_API_KEY=sk-abc123", "NOT_A_PAIR"}
	got := RedactEnv(in)
	want := []string{"DEBUG=1", "OPENAI_API_KEY=***REDACTED***", "NOT_A_PAIR"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RedactEnv(%v) = %v, want %v", in, got, want)
	}
}
