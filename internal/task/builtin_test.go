package task_test

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/grader"
	"github.com/felixgeelhaar/codequest/internal/task"
)

var referenceSolutions = map[string]string{
	"1": `function helloWorld() { return "Hello, World!"; }`,
	"2": `function sum(a, b) { return a + b; }`,
	"3": `function findMax(arr) { return Math.max.apply(null, arr); }`,
	"4": `function isPalindrome(s) {
		const clean = s.toLowerCase().replace(/[^a-z0-9]/g, "");
		return clean === clean.split("").reverse().join("");
	}`,
	"5": `function fibonacci(n) {
		let a = 0, b = 1;
		for (let i = 0; i < n; i++) { [a, b] = [b, a + b]; }
		return a;
	}`,
	"6": `function binarySearch(arr, target) {
		let lo = 0, hi = arr.length - 1;
		while (lo <= hi) {
			const mid = Math.floor((lo + hi) / 2);
			if (arr[mid] === target) return mid;
			if (arr[mid] < target) lo = mid + 1; else hi = mid - 1;
		}
		return -1;
	}`,
	"7": `function twoSum(nums, target) {
		const seen = {};
		for (let i = 0; i < nums.length; i++) {
			const want = target - nums[i];
			if (want in seen) return [seen[want], i];
			seen[nums[i]] = i;
		}
		return [];
	}`,
	"8": `function isValid(s) {
		const pairs = { ")": "(", "]": "[", "}": "{" };
		const stack = [];
		for (const ch of s) {
			if (pairs[ch]) {
				if (stack.pop() !== pairs[ch]) return false;
			} else {
				stack.push(ch);
			}
		}
		return stack.length === 0;
	}`,
}

func TestBuiltinTasks_ReferenceSolutionsPass(t *testing.T) {
	tasks, err := task.BuiltinLoader().LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	svc := grader.NewService(grader.DefaultConfig())

	for _, tk := range tasks {
		t.Run(tk.Title, func(t *testing.T) {
			src, ok := referenceSolutions[tk.ID]
			if !ok {
				t.Fatalf("no reference solution for task %s", tk.ID)
			}

			res := svc.Grade(context.Background(), src, tk, domain.LanguageJavaScript)
			if !res.Success {
				for _, tr := range res.Failed() {
					t.Errorf("case %s: input %q got %q (err %q), want %q",
						tr.TestCase.ID, tr.TestCase.Input, tr.Actual, tr.Error, tr.TestCase.Expected)
				}
				t.Fatalf("Grade() Success = false, error = %q", res.Error)
			}
			if res.PassedTests != len(tk.TestCases) {
				t.Errorf("PassedTests = %d, want %d", res.PassedTests, len(tk.TestCases))
			}
		})
	}
}

func TestBuiltinTasks_StarterCodeFails(t *testing.T) {
	tasks, err := task.BuiltinLoader().LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	svc := grader.NewService(grader.DefaultConfig())

	for _, tk := range tasks {
		res := svc.Grade(context.Background(), tk.StarterCode[domain.LanguageJavaScript], tk, domain.LanguageJavaScript)
		if res.Success {
			t.Errorf("task %s: starter code should not pass", tk.ID)
		}
	}
}
