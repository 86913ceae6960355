package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/schema"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mitchellh/mapstructure"
)

// Names of the built-in handlers.
const (
	Noop  = "noop"
	Set   = "set"
	Fail  = "fail"
	Route = "route"
	Log   = "log"
)

// ExprPrefix marks a "set" prop value as an expression.
const ExprPrefix = "="

type routeProps struct {
	Routes []struct {
		When string `mapstructure:"when"`
		Port string `mapstructure:"port"`
	} `mapstructure:"routes"`
	Otherwise string `mapstructure:"otherwise"`
}

type messageProps struct {
	Message string `mapstructure:"message"`
}

func registerBuiltins(r *Registry) {
	r.Register(Noop, domain.OnContext(func(_ domain.Context, done *domain.Done) {
		done.Default()
	}), WithDescription("Continues on the default out-port."))

	r.Register(Set, domain.OnProps(func(data domain.Context, inPort string, props domain.Props, done *domain.Done) {
		env := exprEnv(data, inPort, props)
		for _, key := range slices.Sorted(maps.Keys(props)) {
			value := props[key]
			src, ok := value.(string)
			if !ok || !strings.HasPrefix(src, ExprPrefix) {
				data[key] = value
				continue
			}
			result, err := evaluate(strings.TrimPrefix(src, ExprPrefix), env, false)
			if err != nil {
				done.Fail(fmt.Errorf("set %s: %w", key, err))
				return
			}
			data[key] = result
		}
		done.Default()
	}), WithDescription(`Copies every prop into the context in key order. String values starting with "=" are expressions over ctx, props and port.`))

	r.Register(Fail, domain.OnProps(func(_ domain.Context, _ string, props domain.Props, done *domain.Done) {
		p := messageProps{Message: "fail"}
		if err := mapstructure.Decode(map[string]any(props), &p); err != nil {
			done.Fail(err)
			return
		}
		done.Fail(errors.New(p.Message))
	}), WithDescription("Fails the step with props.message."),
		WithProps(schema.Schema{"message": schema.Optional(schema.String())}))

	r.Register(Route, domain.OnProps(func(data domain.Context, inPort string, props domain.Props, done *domain.Done) {
		var p routeProps
		if err := mapstructure.Decode(map[string]any(props), &p); err != nil {
			done.Fail(err)
			return
		}
		env := exprEnv(data, inPort, props)
		for _, route := range p.Routes {
			ok, err := evaluate(route.When, env, true)
			if err != nil {
				done.Fail(fmt.Errorf("route %q: %w", route.When, err))
				return
			}
			if ok.(bool) {
				done.Next(route.Port)
				return
			}
		}
		done.Next(p.Otherwise)
	}), WithDescription("Continues on the port of the first route whose expression holds, else on props.otherwise."),
		WithProps(schema.Schema{
			"routes": schema.Slice(schema.Map(schema.Schema{
				"when": schema.String(),
				"port": schema.String(),
			})),
			"otherwise": schema.Optional(schema.String()),
		}))

	r.Register(Log, domain.OnProps(func(_ domain.Context, inPort string, props domain.Props, done *domain.Done) {
		var p messageProps
		if err := mapstructure.Decode(map[string]any(props), &p); err != nil {
			done.Fail(err)
			return
		}
		r.logger.Info(p.Message, "in_port", inPort)
		done.Default()
	}), WithDescription("Logs props.message at info level."),
		WithProps(schema.Schema{"message": schema.String()}))
}

func exprEnv(data domain.Context, inPort string, props domain.Props) map[string]any {
	return map[string]any{
		"ctx":   map[string]any(data),
		"props": map[string]any(props),
		"port":  inPort,
	}
}

var (
	boolPrograms  sync.Map // string -> *vm.Program
	valuePrograms sync.Map // string -> *vm.Program
)

// evaluate compiles src once and runs it against env.
func evaluate(src string, env map[string]any, asBool bool) (any, error) {
	cache, opts := &valuePrograms, []expr.Option(nil)
	if asBool {
		cache, opts = &boolPrograms, []expr.Option{expr.AsBool()}
	}

	var program *vm.Program
	if cached, ok := cache.Load(src); ok {
		program = cached.(*vm.Program)
	} else {
		compiled, err := expr.Compile(src, opts...)
		if err != nil {
			return nil, err
		}
		cache.Store(src, compiled)
		program = compiled
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, err
	}
	if asBool {
		if _, ok := out.(bool); !ok {
			return nil, fmt.Errorf("expected bool, got %T", out)
		}
	}
	return out, nil
}
