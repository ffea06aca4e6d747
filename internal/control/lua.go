package control

import (
	"fmt"
	"log"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// LuaCurve evaluates a Lua expression of t. Only the base and math
// libraries are loaded.
type LuaCurve struct {
	expr string

	mu     sync.Mutex
	L      *lua.LState
	fn     lua.LValue
	last   float64
	failed bool // an evaluation error has been logged
	closed bool
}

// NewLuaCurve compiles expr, e.g. "50 + 50*math.sin(t)".
func NewLuaCurve(expr string) (*LuaCurve, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	src := fmt.Sprintf("function curve(t) return %s end", expr)
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua curve %q: %w", expr, err)
	}

	c := &LuaCurve{expr: expr, L: L, fn: L.GetGlobal("curve")}
	// evaluate once so runtime errors surface at load time
	if _, err := c.eval(0); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua curve %q: %w", expr, err)
	}
	return c, nil
}

// At evaluates the expression. On error, or once closed, the previous value is held.
func (c *LuaCurve) At(t float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.last
	}

	v, err := c.eval(t)
	if err != nil {
		if !c.failed {
			log.Printf("Lua curve %q: %v (holding %.3f)", c.expr, err, c.last)
			c.failed = true
		}
		return c.last
	}
	c.last = v
	return v
}

func (c *LuaCurve) eval(t float64) (float64, error) {
	if err := c.L.CallByParam(lua.P{Fn: c.fn, NRet: 1, Protect: true}, lua.LNumber(t)); err != nil {
		return 0, err
	}
	ret := c.L.Get(-1)
	c.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("returned %s, want number", ret.Type())
	}
	return float64(n), nil
}

// Close releases the Lua state. Safe to call more than once.
func (c *LuaCurve) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.L.Close()
}
