package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_Go(t *testing.T) {
	require.NoError(t, Validate("go", "a.go", "package a\n\nfunc f() {}\n"))

	err := Validate("go", "a.go", "package a\n\nfunc f( {\n")
	require.Error(t, err)
}

func TestValidate_Python_BalancedBrackets(t *testing.T) {
	require.NoError(t, Validate("python", "a.py", "def f(x):\n    return [x, (x, x)]\n"))
}

func TestValidate_Python_UnbalancedBrackets(t *testing.T) {
	err := Validate("python", "a.py", "def f(x:\n    return x\n")
	require.Error(t, err)
}

func TestValidate_Python_ExtraClosingBracket(t *testing.T) {
	err := Validate("python", "a.py", "def f(): return x)\n")
	require.Error(t, err)
}

func TestValidate_JavaScript_BraceBalance(t *testing.T) {
	require.NoError(t, Validate("javascript", "a.js", "function f() { return 1; }"))
	require.Error(t, Validate("javascript", "a.js", "function f() { return 1;"))
}

func TestValidate_UnknownLanguageIsAlwaysOk(t *testing.T) {
	require.NoError(t, Validate("cobol", "a.cob", "MOVE ( UNBALANCED"))
}

func TestHasFunctionDefined_Python(t *testing.T) {
	src := "def helper(x):\n    return x\n"
	require.True(t, HasFunctionDefined("python", src, "helper"))
	require.False(t, HasFunctionDefined("python", src, "other"))
}

func TestHasFunctionDefined_NonPythonAlwaysTrue(t *testing.T) {
	require.True(t, HasFunctionDefined("go", "anything at all", "whatever"))
}
