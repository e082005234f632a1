package errors_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/agentstation/bodymap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "field",
			ID:       "weight_kg",
		}
		assert.Equal(t, "field with ID weight_kg not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("algorithm", "crc32")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "timestamp",
			Message: "cannot be zero",
		}
		assert.Equal(t, "validation failed for field timestamp: cannot be zero", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid record"}
		assert.Equal(t, "validation failed: invalid record", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("wrap helper", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapValidation("kind", nil))
		err := pkgerrors.WrapValidation("kind", errors.New("unknown source kind"))
		assert.Contains(t, err.Error(), "kind")
		assert.Contains(t, err.Error(), "unknown source kind")
	})
}

func TestConfigError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.ConfigError{
			Component: "identity",
			Message:   "unsupported algorithm",
		}
		assert.Equal(t, "configuration error in identity: unsupported algorithm", err.Error())
		assert.True(t, pkgerrors.IsConfigError(err))
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("negative tolerance")
		err := pkgerrors.NewConfigError("reconciler", "invalid tolerance", base)
		assert.Equal(t, base, err.Unwrap())
		assert.True(t, errors.Is(err, base))
	})

	t.Run("wrap helper", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapConfig("x", nil))
		err := pkgerrors.WrapConfig("authority", errors.New("unknown source"))
		var cfgErr *pkgerrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "authority", cfgErr.Component)
	})
}

func TestMergeError(t *testing.T) {
	err := pkgerrors.NewMergeError("2024-01-15T10:30:00Z", []string{"a.fit"}, pkgerrors.ErrMissingWeight)
	assert.Contains(t, err.Error(), "2024-01-15T10:30:00Z")
	assert.Contains(t, err.Error(), "a.fit")
	assert.True(t, errors.Is(err, pkgerrors.ErrMissingWeight))

	noFiles := pkgerrors.NewMergeError("2024-01-15T10:30:00Z", nil, pkgerrors.ErrMissingWeight)
	assert.NotContains(t, noFiles.Error(), "files")
}

func TestConsolidationError(t *testing.T) {
	groupErr := pkgerrors.NewMergeError("2024-01-15T10:30:00Z", nil, pkgerrors.ErrMissingWeight)
	err := pkgerrors.NewConsolidationError("no measurements survived merge", 1, []error{groupErr})

	assert.True(t, pkgerrors.IsConsolidationError(err))
	assert.True(t, errors.Is(err, pkgerrors.ErrMissingWeight))
	assert.Contains(t, err.Error(), "1 groups")

	bare := pkgerrors.NewConsolidationError("no input records", 0, nil)
	assert.Equal(t, "consolidation failed: no input records", bare.Error())
}

func TestParseError(t *testing.T) {
	t.Run("with file and line", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "csv",
			File:    "Peso 1-2024 Huawei Health.csv",
			Line:    10,
			Message: "bad date",
		}
		assert.Contains(t, err.Error(), "Huawei Health.csv:10")
		assert.Contains(t, err.Error(), "bad date")
	})

	t.Run("AtLine", func(t *testing.T) {
		err := pkgerrors.NewParseError("csv", "a.csv", "bad weight", nil).AtLine(4)
		assert.Equal(t, "parse error in csv at a.csv:4: bad weight", err.Error())
	})

	t.Run("format only", func(t *testing.T) {
		err := pkgerrors.NewParseError("fit", "", "truncated header", nil)
		assert.Equal(t, "fit parse error: truncated header", err.Error())
	})

	t.Run("wrap helper", func(t *testing.T) {
		base := errors.New("unexpected EOF")
		err := pkgerrors.WrapParse("fit", "x.fit", base)
		assert.True(t, errors.Is(err, base))
	})
}

func TestIOError(t *testing.T) {
	base := errors.New("disk full")
	err := pkgerrors.WrapIO("write", "/data/output.csv", base)
	var ioErr *pkgerrors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Operation)
	assert.Equal(t, base, ioErr.Unwrap())
	assert.Nil(t, pkgerrors.WrapIO("write", "x", nil))
}
