package filters

import "fmt"

func StringArg(x any) (string, error) {
	if s, ok := x.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%v is not a string", x)
}

func IntArg(x any) (int, error) {
	switch i := x.(type) {
	case int:
		return i, nil
	case float64:
		ii := int(i)
		// check if integer
		if float64(ii) == i {
			return ii, nil
		}
	}
	return 0, fmt.Errorf("%v is not an integer", x)
}

// StringArgs expects at least min arguments, all of them strings.
func StringArgs(args []any, min int) ([]string, error) {
	if len(args) < min {
		return nil, ErrInvalidFilterParameters
	}

	s := make([]string, len(args))
	for i, a := range args {
		si, err := StringArg(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFilterParameters, err)
		}

		s[i] = si
	}

	return s, nil
}

// StringPairArgs expects a non-empty, even number of string arguments.
func StringPairArgs(args []any) ([]string, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, ErrInvalidFilterParameters
	}

	return StringArgs(args, 2)
}
