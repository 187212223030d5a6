package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// EnvFeeder sets struct fields tagged `env:"NAME"` from environment
// variables named PREFIX_NAME. Nested structs carrying an env tag extend the
// prefix with their own tag; untagged nested structs keep the parent prefix.
// Unset or empty variables leave fields untouched.
type EnvFeeder struct {
	Prefix string
	lookup func(string) (string, bool)
}

// NewEnvFeeder creates a new EnvFeeder that reads variables with the given prefix.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix, lookup: os.LookupEnv}
}

// Feed implements Feeder.
func (e EnvFeeder) Feed(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return wrapTargetError(target)
	}
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return e.processStruct(rv.Elem(), strings.TrimSuffix(strings.ToUpper(e.Prefix), "_"), lookup)
}

func (e EnvFeeder) processStruct(rv reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)
		if !fieldType.IsExported() {
			continue
		}
		tag, hasTag := fieldType.Tag.Lookup("env")

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			nested := prefix
			if hasTag && tag != "" {
				nested = joinEnv(prefix, tag)
			}
			if err := e.processStruct(field, nested, lookup); err != nil {
				return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
			}
			continue
		}
		if !hasTag || tag == "" {
			continue
		}

		name := joinEnv(prefix, tag)
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, name, value); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	name = strings.ToUpper(name)
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, name, strValue string) error {
	if !field.CanSet() {
		return fmt.Errorf("%w: %s", ErrEnvFieldCannotBeSet, name)
	}

	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return wrapEnvConvertError(name, "duration", err)
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(strValue, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(out)
		return nil
	case field.Kind() == reflect.Slice, field.Kind() == reflect.Map, field.Kind() == reflect.Pointer,
		field.Kind() == reflect.Interface, field.Kind() == reflect.Chan, field.Kind() == reflect.Func:
		return fmt.Errorf("%w: %s for %s", ErrEnvUnsupportedType, field.Type(), name)
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return wrapEnvConvertError(name, field.Type().String(), err)
	}
	field.Set(reflect.ValueOf(convertedValue).Convert(field.Type()))
	return nil
}
