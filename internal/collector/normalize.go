package collector

import (
	"encoding/json"
	"strings"
	"time"
)

// optString 去掉首尾空白，空串视为缺失
func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// 各家 API 返回的时间格式不统一，按顺序尝试
var publishedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// parsePublished 解析失败返回 nil，排序时按 Unix 纪元处理
func parsePublished(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// flexString 兼容上游字段有时是字符串、有时是字符串数组的情况，只取第一个值
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		for _, v := range list {
			if strings.TrimSpace(v) != "" {
				*f = flexString(v)
				return nil
			}
		}
		*f = ""
		return nil
	}
	// 其它类型（对象、数字）一律视为缺失，不让整条响应解码失败
	*f = ""
	return nil
}

func (f flexString) String() string {
	return string(f)
}
