package story

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewSchemaValidator 创建按 json 字段名报告路径的结构校验器
func NewSchemaValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// SchemaIssues 将校验错误转换为 "path: message" 列表，path 形如 characters.0.id
func SchemaIssues(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return []string{"(root): " + err.Error()}
	}
	issues := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, fieldPath(fe.Namespace())+": "+fieldMessage(fe))
	}
	return issues
}

// fieldPath 去掉根结构名，并把 [i] 写成 .i
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		namespace = rest
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

func fieldMessage(fe validator.FieldError) string {
	kind := fe.Kind()
	if kind == reflect.Ptr && fe.Type() != nil {
		kind = fe.Type().Elem().Kind()
	}

	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("Array must contain at least %s element(s)", fe.Param())
		default:
			return "Number must be greater than or equal to " + fe.Param()
		}
	case "max":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("Array must contain at most %s element(s)", fe.Param())
		default:
			return "Number must be less than or equal to " + fe.Param()
		}
	case "oneof":
		options := strings.Fields(fe.Param())
		for i, o := range options {
			options[i] = "'" + o + "'"
		}
		return fmt.Sprintf("Invalid enum value. Expected %s, received '%v'", strings.Join(options, " | "), derefValue(fe.Value()))
	case "imageref":
		return "Expected data URI or http(s) URL"
	default:
		return "Failed " + fe.Tag() + " check"
	}
}

func derefValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}
