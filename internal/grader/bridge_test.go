package grader

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestTranslatePython_Output(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "function",
			src:  "def sum(a, b):\n    return a + b\n",
			want: `var __name__ = "solution";
function sum(a, b) {
    return a + b;
}
`,
		},
		{
			name: "if elif else",
			src: `def sign(n):
    if n > 0:
        return 1
    elif n < 0:
        return -1
    else:
        return 0`,
			want: `var __name__ = "solution";
function sign(n) {
    if (n > 0) {
        return 1;
    }
    else if (n < 0) {
        return -1;
    }
    else {
        return 0;
    }
}`,
		},
		{
			name: "literals and operators",
			src:  "def isValid(a, b):\n    return not a and b is not None or False",
			want: `var __name__ = "solution";
function isValid(a, b) {
    return !a && b !== null || false;
}`,
		},
		{
			name: "annotations and defaults",
			src:  "def fibonacci(n: int, memo=None) -> int:\n    pass",
			want: `var __name__ = "solution";
function fibonacci(n, memo = null) {

}`,
		},
		{
			name: "strings are untouched",
			src:  `print("True and None len(x)")  # True`,
			want: `var __name__ = "solution";
console.log("True and None len(x)"); // True`,
		},
		{
			name: "range loop",
			src:  "for i in range(1, len(xs), 2):\n    total += xs[i]",
			want: `var __name__ = "solution";
for (let i = 1; i < (xs).length; i += 2) {
    total += xs[i];
}`,
		},
		{
			name: "descending range",
			src:  "for i in range(n, 0, -1):\n    print(i)",
			want: `var __name__ = "solution";
for (let i = n; i > 0; i += -1) {
    console.log(i);
}`,
		},
		{
			name: "tuple assignment",
			src:  "a, b = b, a + b",
			want: `var __name__ = "solution";
var [a, b] = [b, a + b];`,
		},
		{
			name: "docstring becomes comment",
			src:  "def helloWorld():\n    \"\"\"Greets.\n    Politely.\"\"\"\n    return 'Hello, World!'",
			want: `var __name__ = "solution";
function helloWorld() {
    // Greets.
    // Politely.
    return 'Hello, World!';
}`,
		},
		{
			name: "multi-line literal",
			src:  "xs = [\n    1,\n    2,\n]",
			want: `var __name__ = "solution";
var xs = [
    1,
    2,
];`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslatePython(tt.src)
			if got != tt.want {
				t.Errorf("TranslatePython() =\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestTranslatePython_UserDefinedBuiltinNames(t *testing.T) {
	src := "def max(a, b):\n    return a if a > b else b\n\nx = max(1, 2)"
	got := TranslatePython(src)
	if strings.Contains(got, "Math.max") {
		t.Errorf("user-defined max was rewritten:\n%s", got)
	}
}

func TestTranslatePython_Runs(t *testing.T) {
	tests := []struct {
		name string
		src  string
		args []any
		want string
	}{
		{
			name: "fibonacci",
			src: `def fibonacci(n):
    a, b = 0, 1
    for _ in range(n):
        a, b = b, a + b
    return a
`,
			args: []any{10.0},
			want: "55",
		},
		{
			name: "find max loop",
			src: `def findMax(arr):
    best = arr[0]
    for x in arr:
        if x > best:
            best = x
    return best`,
			args: []any{[]any{1.0, 5.0, 3.0, 9.0, 2.0}},
			want: "9",
		},
		{
			name: "find max builtin",
			src:  "def findMax(arr):\n    return max(arr)",
			args: []any{[]any{-1.0, -5.0, -3.0}},
			want: "-1",
		},
		{
			name: "palindrome",
			src: `def isPalindrome(s):
    cleaned = ""
    for ch in s.lower():
        if ch != " ":
            cleaned = cleaned + ch

    i = 0
    j = len(cleaned) - 1
    while i < j:
        if cleaned[i] != cleaned[j]:
            return False
        i += 1
        j -= 1
    return True
`,
			args: []any{"A man a plan a canal Panama"},
			want: "true",
		},
		{
			name: "two sum with enumerate",
			src: `def twoSum(nums, target):
    for i, a in enumerate(nums):
        for j in range(i + 1, len(nums)):
            if a + nums[j] == target:
                return [i, j]
    return []`,
			args: []any{[]any{2.0, 7.0, 11.0, 15.0}, 9.0},
			want: "[0,1]",
		},
		{
			name: "recursion with locals",
			src: `def factorial(n):
    if n <= 1:
        return 1
    rest = factorial(n - 1)
    return n * rest`,
			args: []any{5.0},
			want: "120",
		},
		{
			name: "main guard is skipped",
			src: `def helloWorld():
    return "Hello, World!"

if __name__ == "__main__":
    print(helloWorld())
    raise_error()`,
			want: "Hello, World!",
		},
		{
			name: "stack of appends",
			src: `def isValid(s):
    stack = []
    pairs = {")": "(", "]": "[", "}": "{"}
    for ch in s:
        if ch == "(" or ch == "[" or ch == "{":
            stack.append(ch)
        else:
            if len(stack) == 0 or stack.pop() != pairs[ch]:
                return False
    return len(stack) == 0`,
			args: []any{"()[]{}"},
			want: "true",
		},
	}

	inv := NewInvoker(InvokerConfig{Timeout: time.Second})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			js := TranslatePython(tt.src)
			got := inv.Invoke(context.Background(), js, DefaultCandidates, tt.args)
			if got.Err != nil {
				t.Fatalf("Invoke() error = %v\nsource:\n%s", got.Err, js)
			}
			if got.Output != tt.want {
				t.Errorf("Invoke() output = %q, want %q\nsource:\n%s", got.Output, tt.want, js)
			}
		})
	}
}

func TestTranslatePython_UnsupportedConstructFails(t *testing.T) {
	src := "def reverseString(s):\n    return s[::-1]"
	inv := NewInvoker(InvokerConfig{Timeout: time.Second})
	got := inv.Invoke(context.Background(), TranslatePython(src), DefaultCandidates, []any{"abc"})
	if got.Err == nil {
		t.Errorf("slicing should not translate, got output %q", got.Output)
	}
}
