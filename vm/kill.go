package vm

import "fmt"

// Kill codes. A killed machine leaves its code on top of the operand stack
// as an int value.
const (
	CodeDivisionByZero    int64 = -1
	CodeInvalidOpcode     int64 = -2
	CodeStackUnderflow    int64 = -3
	CodeUndefinedVariable int64 = -4
	CodeUndefinedFunction int64 = -5
	CodeBusFault          int64 = -6
	CodeNativeFailure     int64 = -7
)

var killCodeNames = map[int64]string{
	CodeDivisionByZero:    "division by zero",
	CodeInvalidOpcode:     "invalid opcode",
	CodeStackUnderflow:    "stack underflow",
	CodeUndefinedVariable: "undefined variable",
	CodeUndefinedFunction: "undefined function",
	CodeBusFault:          "bus fault",
	CodeNativeFailure:     "native call failed",
}

// KillCodeName describes a kill code. Codes not reserved by the VM come
// from KILL instructions in the script.
func KillCodeName(code int64) string {
	if name, ok := killCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("killed by script (code %d)", code)
}

// KillError is returned by Run when execution ends in a forced kill.
type KillError struct {
	Code int64
}

func (e *KillError) Error() string {
	return fmt.Sprintf("vm killed: %s", KillCodeName(e.Code))
}
