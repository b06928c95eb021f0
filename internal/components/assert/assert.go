package assert

import "fmt"

// NotNil panics if value is nil, name is used to identify the value in the panic message.
func NotNil(value any, name ...string) {
	if value != nil {
		return
	}
	if len(name) > 0 {
		panic(fmt.Sprintf("expected %s to be not nil", name[0]))
	}
	panic("expected value to be not nil")
}

func NotEmptyStr(str string, name ...string) {
	if str != "" {
		return
	}
	if len(name) > 0 {
		panic(fmt.Sprintf("expected %s to be non-empty", name[0]))
	}
	panic("expected string to be non-empty")
}
