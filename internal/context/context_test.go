package context

import "testing"

func TestFrameBalance(t *testing.T) {
	c := New()
	c.PushFrame("a")
	c.PushVariable("x", 1)
	if got := c.GetVariable("x", nil); got != 1 {
		t.Errorf("GetVariable = %v, want 1", got)
	}
	if err := c.PopFrame("a"); err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if c.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", c.Depth())
	}
}

func TestFrameMismatchIsError(t *testing.T) {
	c := New()
	c.PushFrame("a")
	if err := c.PopFrame("b"); err == nil {
		t.Fatal("expected error popping with wrong id")
	}
}

func TestSetVariableIsProcessScoped(t *testing.T) {
	c := New()
	c.SetVariable("global", "v")
	c.PushFrame("a")
	if got := c.GetVariable("global", nil); got != "v" {
		t.Errorf("GetVariable = %v, want v", got)
	}
	c.PopFrame("a")
	if got := c.GetVariable("global", nil); got != "v" {
		t.Errorf("process scope lost after frame pop: %v", got)
	}
}

func TestVariableShadowing(t *testing.T) {
	c := New()
	c.PushFrame("outer")
	c.PushVariable("n", "outer-value")
	c.PushFrame("inner")
	c.PushVariable("n", "inner-value")

	if got := c.GetVariable("n", nil); got != "inner-value" {
		t.Errorf("GetVariable = %v, want inner-value", got)
	}

	c.PopFrame("inner")
	if got := c.GetVariable("n", nil); got != "outer-value" {
		t.Errorf("after pop, GetVariable = %v, want outer-value", got)
	}
	c.PopFrame("outer")
}

func TestExpandLiteralPassthrough(t *testing.T) {
	c := New()
	got, err := c.Expand("no braces here")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "no braces here" {
		t.Errorf("got %v", got)
	}
}

func TestExpandSimpleVariable(t *testing.T) {
	c := New()
	c.SetVariable("name", "world")
	got, err := c.ExpandString("hello {{ name }}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestExpandDefaultFilter(t *testing.T) {
	c := New()
	got, err := c.ExpandString("{{ missing|default:\"fallback\" }}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestExpandB64RoundTrip(t *testing.T) {
	c := New()
	c.SetVariable("msg", "hi")
	got, err := c.ExpandString("{{ msg|b64encode }}")
	if err != nil {
		t.Fatalf("ExpandString: %v", err)
	}
	if got != "aGk=" {
		t.Errorf("got %q, want aGk=", got)
	}
}

func TestExpandRecursesIntoList(t *testing.T) {
	c := New()
	c.SetVariable("x", "v")
	got, err := c.Expand([]interface{}{"{{ x }}", "plain"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	list, ok := got.([]interface{})
	if !ok || len(list) != 2 || list[0] != "v" || list[1] != "plain" {
		t.Errorf("got %v", got)
	}
}

func TestFinalizeRules(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{[]byte("x"), "x"},
		{[]interface{}{}, ""},
		{[]interface{}{"solo"}, "solo"},
		{map[string]interface{}{}, ""},
	}
	for _, tc := range cases {
		if got := Finalize(tc.in); got != tc.want {
			t.Errorf("Finalize(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
