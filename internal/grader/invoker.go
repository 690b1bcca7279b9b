package grader

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
)

var (
	// ErrNoSolution is reported when none of the candidate names is bound
	// to a function in the evaluated source
	ErrNoSolution = errors.New("no matching solution function found")

	// ErrTimeLimit is reported when an invocation runs past its deadline
	ErrTimeLimit = errors.New("execution exceeded time limit")
)

const maxLogLines = 200

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Invocation is the outcome of calling a solution once
type Invocation struct {
	Output string   // normalized return value
	Logs   []string // captured console output
	Err    error
}

// InvokerConfig bounds a single invocation
type InvokerConfig struct {
	Timeout          time.Duration
	MaxCallStackSize int
}

// Invoker evaluates JavaScript source in a fresh runtime for every call
type Invoker struct {
	config InvokerConfig
}

// NewInvoker creates an invoker
func NewInvoker(cfg InvokerConfig) *Invoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxCallStackSize <= 0 {
		cfg.MaxCallStackSize = 1024
	}
	return &Invoker{config: cfg}
}

// Invoke evaluates source, resolves the first candidate bound to a function
// and calls it with args. Faults are reported in Invocation.Err.
func (inv *Invoker) Invoke(ctx context.Context, source string, candidates []string, args []any) Invocation {
	vm := goja.New()
	vm.SetMaxCallStackSize(inv.config.MaxCallStackSize)

	console := &consoleBuffer{}
	console.install(vm)

	timer := time.AfterFunc(inv.config.Timeout, func() {
		vm.Interrupt(ErrTimeLimit)
	})
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	result := func(output string, err error) Invocation {
		return Invocation{Output: output, Logs: console.lines, Err: err}
	}

	if _, err := vm.RunString(source); err != nil {
		return result("", runtimeError(err))
	}

	fn, err := resolve(vm, candidates)
	if err != nil {
		return result("", runtimeError(err))
	}

	callArgs := make([]goja.Value, len(args))
	for i, a := range args {
		callArgs[i] = toValue(vm, a)
	}

	ret, err := fn(goja.Undefined(), callArgs...)
	if err != nil {
		return result("", runtimeError(err))
	}

	out, err := normalize(vm, ret)
	if err != nil {
		return result("", runtimeError(err))
	}
	return result(out, nil)
}

// resolve returns the function bound to the first candidate name. Lookup goes
// through the global lexical scope so let/const bindings are found as well as
// function declarations.
func resolve(vm *goja.Runtime, candidates []string) (goja.Callable, error) {
	for _, name := range candidates {
		if !identPattern.MatchString(name) {
			continue
		}
		v, err := vm.RunString(fmt.Sprintf("typeof %[1]s === 'function' ? %[1]s : undefined", name))
		if err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				return nil, err
			}
			continue
		}
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		if fn, ok := goja.AssertFunction(v); ok {
			return fn, nil
		}
	}
	return nil, ErrNoSolution
}

func toValue(vm *goja.Runtime, a any) goja.Value {
	switch v := a.(type) {
	case []any:
		items := make([]any, len(v))
		for i, e := range v {
			items[i] = toValue(vm, e)
		}
		return vm.NewArray(items...)
	case nil:
		return goja.Null()
	default:
		return vm.ToValue(v)
	}
}

// normalize renders a return value the way the expected outputs are written:
// objects and arrays as JSON, everything else as String(value).
func normalize(vm *goja.Runtime, v goja.Value) (string, error) {
	if v == nil {
		return "undefined", nil
	}
	obj, isObject := v.(*goja.Object)
	if !isObject {
		return v.String(), nil
	}
	if _, isFunc := goja.AssertFunction(v); isFunc {
		return v.String(), nil
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return obj.String(), nil
	}
	s, err := stringify(goja.Undefined(), obj)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(s) {
		return obj.String(), nil
	}
	return s.String(), nil
}

// runtimeError maps goja failures to their user-facing message
func runtimeError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return ErrTimeLimit
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if obj, ok := exception.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
					return fmt.Errorf("%s: %s", name.String(), msg.String())
				}
				return errors.New(msg.String())
			}
		}
		return errors.New(exception.Value().String())
	}

	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return fmt.Errorf("SyntaxError: %s", syntax.Message)
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return errors.New("RangeError: maximum call stack size exceeded")
	}

	return err
}

// consoleBuffer collects console output so it never reaches the process
type consoleBuffer struct {
	lines     []string
	truncated bool
}

func (c *consoleBuffer) install(vm *goja.Runtime) {
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		prefix := ""
		if level == "warn" || level == "error" {
			prefix = level + ": "
		}
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				s, err := normalize(vm, a)
				if err != nil {
					s = a.String()
				}
				parts[i] = s
			}
			c.add(prefix + strings.Join(parts, " "))
			return goja.Undefined()
		})
	}
	_ = vm.Set("console", console)
}

func (c *consoleBuffer) add(line string) {
	if len(c.lines) >= maxLogLines {
		if !c.truncated {
			c.lines = append(c.lines, "... output truncated")
			c.truncated = true
		}
		return
	}
	c.lines = append(c.lines, line)
}
