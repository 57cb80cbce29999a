package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"storybook-studio/internal/domain/entity"
)

// 数组长度上限，由结构级校验报告以便同时检查每个元素
const (
	maxStyleKeywords = 8
	maxCharacters    = 6
)

// intentPayload 意图请求体的校验形态，指针字段用于区分缺失与空值
type intentPayload struct {
	Audience      *string            `json:"audience" validate:"required,oneof=child adult"`
	Theme         *string            `json:"theme" validate:"required,min=3"`
	Lesson        *string            `json:"lesson" validate:"required,min=3"`
	AgeRange      *string            `json:"ageRange" validate:"required,min=3"`
	Tone          *string            `json:"tone" validate:"required,oneof=gentle playful adventurous soothing wondrous custom"`
	CustomTone    *string            `json:"customTone"`
	PageCount     *int               `json:"pageCount" validate:"required,min=8,max=30"`
	StyleKeywords []string           `json:"styleKeywords" validate:"required,dive,min=2"`
	Characters    []characterPayload `json:"characters" validate:"required,dive"`
}

type characterPayload struct {
	ID                    *string `json:"id" validate:"required,min=1"`
	Name                  *string `json:"name" validate:"required,min=1,max=60"`
	Description           *string `json:"description" validate:"required,min=5,max=600"`
	ReferenceImageDataURL *string `json:"referenceImageDataUrl" validate:"omitnil,imageref"`
}

var intentSchema = newIntentSchema()

func newIntentSchema() *validator.Validate {
	v := NewSchemaValidator()
	_ = v.RegisterValidation("imageref", func(fl validator.FieldLevel) bool {
		return IsReferenceImageURL(fl.Field().String())
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(intentPayload)
		if len(p.StyleKeywords) > maxStyleKeywords {
			sl.ReportError(p.StyleKeywords, "styleKeywords", "StyleKeywords", "max", strconv.Itoa(maxStyleKeywords))
		}
		if len(p.Characters) > maxCharacters {
			sl.ReportError(p.Characters, "characters", "Characters", "max", strconv.Itoa(maxCharacters))
		}
	}, intentPayload{})
	return v
}

// ParseStoryIntent 解析并校验创作意图，一次性返回全部违规项
// 字符串不做 trim，未知字段忽略
func ParseStoryIntent(raw []byte) (*entity.StoryIntent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, NewValidationError([]string{"(root): Invalid JSON: " + err.Error()})
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, NewValidationError([]string{"(root): Expected object, received " + typeName(doc)})
	}

	// JSON 类型错误先行报告，并从文档中剔除，结构校验只看类型正确的部分
	tc := &typeCheck{bad: map[string]bool{}}
	for _, key := range []string{"audience", "theme", "lesson", "ageRange", "tone", "customTone"} {
		tc.str(obj, key, key)
	}
	tc.integer(obj, "pageCount")
	if items := tc.array(obj, "styleKeywords"); items != nil {
		for i, item := range items {
			if _, isStr := item.(string); !isStr {
				tc.fail(fmt.Sprintf("styleKeywords.%d", i), "Expected string, received "+typeName(item))
				items[i] = ""
			}
		}
	}
	if items := tc.array(obj, "characters"); items != nil {
		for i, item := range items {
			path := fmt.Sprintf("characters.%d", i)
			c, isObj := item.(map[string]any)
			if !isObj {
				tc.fail(path, "Expected object, received "+typeName(item))
				items[i] = map[string]any{}
				continue
			}
			for _, key := range []string{"id", "name", "description", "referenceImageDataUrl"} {
				tc.str(c, key, path+"."+key)
			}
		}
	}

	canonical, err := json.Marshal(obj)
	if err != nil {
		return nil, NewValidationError([]string{"(root): " + err.Error()})
	}
	var payload intentPayload
	if err := json.Unmarshal(canonical, &payload); err != nil {
		return nil, NewValidationError([]string{"(root): " + err.Error()})
	}

	issues := tc.issues
	if err := intentSchema.Struct(payload); err != nil {
		for _, issue := range SchemaIssues(err) {
			path, _, _ := strings.Cut(issue, ": ")
			if !tc.covers(path) {
				issues = append(issues, issue)
			}
		}
	}
	if len(issues) > 0 {
		return nil, NewValidationError(issues)
	}

	var intent entity.StoryIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, NewValidationError([]string{"(root): " + err.Error()})
	}
	if intent.StyleKeywords == nil {
		intent.StyleKeywords = []string{}
	}
	if intent.Characters == nil {
		intent.Characters = []entity.CharacterInput{}
	}
	return &intent, nil
}

// typeCheck 记录类型不符的路径，其下的结构校验结果不再重复报告
type typeCheck struct {
	issues []string
	bad    map[string]bool
}

func (c *typeCheck) fail(path, msg string) {
	c.issues = append(c.issues, path+": "+msg)
	c.bad[path] = true
}

func (c *typeCheck) covers(path string) bool {
	for p := range c.bad {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func (c *typeCheck) str(obj map[string]any, key, path string) {
	val, ok := obj[key]
	if !ok || val == nil {
		return
	}
	if _, isStr := val.(string); !isStr {
		c.fail(path, "Expected string, received "+typeName(val))
		delete(obj, key)
	}
}

func (c *typeCheck) integer(obj map[string]any, key string) {
	val, ok := obj[key]
	if !ok || val == nil {
		return
	}
	num, isNum := val.(json.Number)
	if !isNum {
		c.fail(key, "Expected number, received "+typeName(val))
		delete(obj, key)
		return
	}
	if _, err := num.Int64(); err != nil {
		if _, ferr := num.Float64(); ferr == nil {
			c.fail(key, "Expected integer, received float")
		} else {
			c.fail(key, "Expected number, received "+typeName(val))
		}
		delete(obj, key)
	}
}

func (c *typeCheck) array(obj map[string]any, key string) []any {
	val, ok := obj[key]
	if !ok || val == nil {
		return nil
	}
	items, isArr := val.([]any)
	if !isArr {
		c.fail(key, "Expected array, received "+typeName(val))
		delete(obj, key)
		return nil
	}
	return items
}

// IsReferenceImageURL 判断角色参考图地址是否合法
func IsReferenceImageURL(s string) bool {
	return strings.HasPrefix(s, "data:image") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
