package testutil

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
)

// AssertEqual checks if two values are equal using deep equality
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()

	if !reflect.DeepEqual(expected, actual) {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sExpected: %+v\nActual: %+v", msg, expected, actual)
	}
}

// AssertTrue checks if a value is true
func AssertTrue(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()

	if !value {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sExpected true, got false", msg)
	}
}

// AssertFalse checks if a value is false
func AssertFalse(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()

	if value {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sExpected false, got true", msg)
	}
}

// AssertContains checks if a string contains a substring
func AssertContains(t *testing.T, str, substr string, msgAndArgs ...interface{}) {
	t.Helper()

	if !strings.Contains(str, substr) {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sString %q does not contain %q", msg, str, substr)
	}
}

// AssertSliceEqual checks if two slices are equal, in order.
// Order matters here: manifest installs and bootstrap strategies are
// sequence-sensitive, so an out-of-order match is a failure.
func AssertSliceEqual(t *testing.T, expected, actual []string, msgAndArgs ...interface{}) {
	t.Helper()

	if len(expected) != len(actual) {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sSlice length mismatch. Expected: %d, Actual: %d\nExpected: %v\nActual: %v",
			msg, len(expected), len(actual), expected, actual)
		return
	}

	for i := range expected {
		if expected[i] != actual[i] {
			msg := formatMessage(msgAndArgs...)
			t.Errorf("%sSlice content mismatch at index %d\nExpected: %v\nActual: %v",
				msg, i, expected, actual)
			return
		}
	}
}

// AssertError checks if an error occurred
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()

	if err == nil {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sExpected an error but got nil", msg)
	}
}

// AssertNoError checks if no error occurred
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()

	if err != nil {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sUnexpected error: %v", msg, err)
	}
}

// AssertNotEmpty checks that a string is not empty
func AssertNotEmpty(t *testing.T, value string, msgAndArgs ...interface{}) {
	t.Helper()
	if value == "" {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sExpected non-empty string", msg)
	}
}

// AssertFileExists checks that a file exists.
func AssertFileExists(t *testing.T, path string, msgAndArgs ...interface{}) {
	t.Helper()
	if !FileExists(t, path) {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sFile does not exist: %s", msg, path)
	}
}

// AssertDirExists checks that a directory exists.
func AssertDirExists(t *testing.T, path string, msgAndArgs ...interface{}) {
	t.Helper()
	if !DirExists(t, path) {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sDirectory does not exist: %s", msg, path)
	}
}

// AssertNoFile checks that a path does not exist.
func AssertNoFile(t *testing.T, path string, msgAndArgs ...interface{}) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		msg := formatMessage(msgAndArgs...)
		t.Errorf("%sPath exists but should not: %s", msg, path)
	}
}

// AssertFileContent checks that a file exists and has the expected content.
func AssertFileContent(t *testing.T, path, expected string) {
	t.Helper()

	if !FileExists(t, path) {
		t.Fatalf("File %s does not exist", path)
	}

	actual := ReadFile(t, path)
	if actual != expected {
		t.Errorf("File %s content mismatch\nExpected: %q\nActual: %q", path, expected, actual)
	}
}

func formatMessage(msgAndArgs ...interface{}) string {
	if len(msgAndArgs) == 0 {
		return ""
	}

	if len(msgAndArgs) == 1 {
		if msg, ok := msgAndArgs[0].(string); ok {
			return msg + "\n"
		}
		return fmt.Sprint(msgAndArgs[0]) + "\n"
	}

	if format, ok := msgAndArgs[0].(string); ok && strings.Contains(format, "%") {
		return fmt.Sprintf(format, msgAndArgs[1:]...) + "\n"
	}

	parts := make([]string, len(msgAndArgs))
	for i, arg := range msgAndArgs {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, " ") + "\n"
}
