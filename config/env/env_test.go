package env

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestLoader_VarsUsed(t *testing.T) {
	l := NewLoader()
	defDuration := time.Second * 10
	defStr := "auto"
	defBool := true
	defInt := 47
	l.Duration(&defDuration, "ENV_TEST_DURATION")
	l.String(&defStr, "ENV_TEST_STRING")
	l.Bool(&defBool, "ENV_TEST_BOOL")
	l.Int(&defInt, "ENV_TEST_INT")

	help := []string{}
	for _, s := range l.VarsUsed() {
		help = append(help, s.String())
	}

	// N.B. Alphabetical order
	expected := []string{
		"ENV_TEST_BOOL                            bool         (true)",
		"ENV_TEST_DURATION                        Duration     (10s)",
		"ENV_TEST_INT                             int          (47)",
		"ENV_TEST_STRING                          string       (auto)",
	}
	assert.Check(t, cmp.DeepEqual(help, expected))
}

func TestLoader_Duration(t *testing.T) {
	const durationEnvVar = "ENV_TEST_DURATION"
	t.Run("good", func(t *testing.T) {
		t.Setenv(durationEnvVar, "250ms")

		durationField := time.Second * 10
		NewLoader().Duration(&durationField, durationEnvVar)
		assert.Check(t, cmp.Equal(durationField, 250*time.Millisecond))
	})

	t.Run("env not set", func(t *testing.T) {
		durationField := time.Hour
		NewLoader().Duration(&durationField, durationEnvVar)
		assert.Check(t, cmp.Equal(durationField, time.Hour))
	})

	t.Run("not a duration", func(t *testing.T) {
		t.Setenv(durationEnvVar, "soon")

		l := NewLoader()
		durationField := time.Hour
		l.Duration(&durationField, durationEnvVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid duration"))
		assert.Check(t, cmp.Equal(durationField, time.Hour))
	})
}

func TestLoader_String(t *testing.T) {
	const stringEnvVar = "ENV_TEST_STRING"
	t.Run("good", func(t *testing.T) {
		t.Setenv(stringEnvVar, "http://localhost:4567")

		stringField := ""
		NewLoader().String(&stringField, stringEnvVar)
		assert.Check(t, cmp.Equal(stringField, "http://localhost:4567"))
	})

	t.Run("set empty", func(t *testing.T) {
		t.Setenv(stringEnvVar, "")

		stringField := "default"
		NewLoader().String(&stringField, stringEnvVar)
		assert.Check(t, cmp.Equal(stringField, ""))
	})

	t.Run("env not set", func(t *testing.T) {
		stringField := "default"
		NewLoader().String(&stringField, stringEnvVar)
		assert.Check(t, cmp.Equal(stringField, "default"))
	})
}

func TestLoader_Int(t *testing.T) {
	const intEnvVar = "ENV_TEST_INT"
	t.Run("good", func(t *testing.T) {
		t.Setenv(intEnvVar, "48")

		var intField int
		NewLoader().Int(&intField, intEnvVar)
		assert.Check(t, cmp.Equal(intField, 48))
	})

	t.Run("not an int", func(t *testing.T) {
		t.Setenv(intEnvVar, "forty-eight")

		l := NewLoader()
		intField := 55
		l.Int(&intField, intEnvVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid syntax"))
		assert.Check(t, cmp.Equal(intField, 55))
	})
}

func TestLoader_Bool(t *testing.T) {
	const boolEnvVar = "ENV_TEST_BOOL"
	t.Run("good", func(t *testing.T) {
		t.Setenv(boolEnvVar, "true")

		var boolField bool
		NewLoader().Bool(&boolField, boolEnvVar)
		assert.Check(t, boolField)
	})

	t.Run("not a bool", func(t *testing.T) {
		t.Setenv(boolEnvVar, "booble")

		l := NewLoader()
		boolField := true
		l.Bool(&boolField, boolEnvVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid syntax"))
		assert.Check(t, boolField)
	})
}

func TestLoader_Duplicate(t *testing.T) {
	l := NewLoader()
	stringField := "default"
	l.String(&stringField, "ENV_TEST_STRING")

	defer func() {
		assert.Check(t, recover() != nil, "expected a panic")
	}()
	l.String(&stringField, "ENV_TEST_STRING")
}

func TestLoader_MultipleError(t *testing.T) {
	t.Setenv("ENV_TEST_BAD_INT", "forty-eight")
	t.Setenv("ENV_TEST_BAD_BOOL", "not-bool")

	l := NewLoader()
	intField := 0
	l.Int(&intField, "ENV_TEST_BAD_INT")
	boolField := true
	l.Bool(&boolField, "ENV_TEST_BAD_BOOL")

	assert.Check(t, cmp.ErrorContains(l.Err(), "2 errors occurred"))
}
