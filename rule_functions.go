package bitstate

import (
	"fmt"
	"math"
)

// RuleFunctions returns the functions every rule validator provides:
//
//	isSet(mask, index) bool
//	popcount(mask) int
//	bit(index) uint
func RuleFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("isSet", func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("isSet: expected 2 arguments, got %d", len(args))
		}
		mask, err := toMask(args[0])
		if err != nil {
			return nil, fmt.Errorf("isSet: %w", err)
		}
		index, err := toIndex(args[1])
		if err != nil {
			return nil, fmt.Errorf("isSet: %w", err)
		}
		return mask.Has(index), nil
	})
	_ = registry.Register("popcount", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("popcount: expected 1 argument, got %d", len(args))
		}
		mask, err := toMask(args[0])
		if err != nil {
			return nil, fmt.Errorf("popcount: %w", err)
		}
		return int64(mask.Count()), nil
	})
	_ = registry.Register("bit", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("bit: expected 1 argument, got %d", len(args))
		}
		index, err := toIndex(args[0])
		if err != nil {
			return nil, fmt.Errorf("bit: %w", err)
		}
		return uint64(Bit(index)), nil
	})
	return registry
}

func toMask(value any) (Mask, error) {
	switch v := value.(type) {
	case Mask:
		return v, nil
	case uint64:
		return Mask(v), nil
	case uint:
		return Mask(v), nil
	case uint32:
		return Mask(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative mask %d", v)
		}
		return Mask(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative mask %d", v)
		}
		return Mask(v), nil
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid mask %v", v)
		}
		return Mask(v), nil
	default:
		return 0, fmt.Errorf("unsupported mask type %T", value)
	}
}

func toIndex(value any) (int, error) {
	var index int
	switch v := value.(type) {
	case int:
		index = v
	case int64:
		index = int(v)
	case int32:
		index = int(v)
	case uint64:
		if v > MaxIndex {
			return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, v)
		}
		index = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid index %v", v)
		}
		index = int(v)
	default:
		return 0, fmt.Errorf("unsupported index type %T", value)
	}
	if !validIndex(index) {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return index, nil
}
