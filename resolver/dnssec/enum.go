package dnssec

import "fmt"

// Hand-maintained equivalent of what `go generate` would emit for the ENUM(...)
// blocks in const.go (go-enum's --marshal --names output), kept in sync by hand.

const (
	ValidationResultSecure ValidationResult = iota
	ValidationResultInsecure
	ValidationResultBogus
	ValidationResultIndeterminate
)

var validationResultNames = map[ValidationResult]string{
	ValidationResultSecure:       "Secure",
	ValidationResultInsecure:     "Insecure",
	ValidationResultBogus:        "Bogus",
	ValidationResultIndeterminate: "Indeterminate",
}

func (r ValidationResult) String() string {
	if name, ok := validationResultNames[r]; ok {
		return name
	}

	return fmt.Sprintf("ValidationResult(%d)", int(r))
}

const (
	ValEventStateInit ValEventState = iota
	ValEventStateFindkey
	ValEventStateValidate
	ValEventStateCname
	ValEventStateFinished
)

var valEventStateNames = map[ValEventState]string{
	ValEventStateInit:     "INIT",
	ValEventStateFindkey:  "FINDKEY",
	ValEventStateValidate: "VALIDATE",
	ValEventStateCname:    "CNAME",
	ValEventStateFinished: "FINISHED",
}

func (s ValEventState) String() string {
	if name, ok := valEventStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ValEventState(%d)", int(s))
}
