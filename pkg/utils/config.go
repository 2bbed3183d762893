package utils

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func StringToBoolHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Bool {
			return data, nil
		}

		str := data.(string)
		switch str {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		default:
			return nil, fmt.Errorf("cannot convert %q to bool", str)
		}
	}
}

func StringToIntHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int {
			return data, nil
		}

		str := data.(string)
		var i int
		_, err := fmt.Sscanf(str, "%d", &i)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int: %v", str, err)
		}
		return i, nil
	}
}

func StringToFloatHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Float64 {
			return data, nil
		}

		str := data.(string)
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float: %v", str, err)
		}
		return value, nil
	}
}

// Decodes human readable sizes such as "512MiB" into ByteSize fields.
func StringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		size, err := ParseSize(data.(string))
		if err != nil {
			return nil, err
		}
		return ByteSize(size), nil
	}
}

// Custom unmarshal function to handle time.Duration, sizes and bool properly.
func UnmarshalConfig(v *viper.Viper, cfg interface{}) error {
	return DecodeConfig(v.AllSettings(), cfg)
}

// Decode a generic settings map into a configuration struct.
func DecodeConfig(settings map[string]interface{}, cfg interface{}) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		StringToByteSizeHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		StringToBoolHookFunc(),
		StringToIntHookFunc(),
		StringToFloatHookFunc(),
	)

	decoderConfig := &mapstructure.DecoderConfig{
		DecodeHook:       hook,
		Result:           cfg,
		WeaklyTypedInput: true,
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}
