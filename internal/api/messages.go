package api

import (
	"golang.org/x/text/language"
)

// Fallback texts used when the server gives no detail.
const (
	msgRequestFailed = "Request failed"
	msgNetworkError  = "Network Error"
)

// zhHansMessages maps the backend's English error details to Simplified
// Chinese display text.
var zhHansMessages = map[string]string{
	"Incorrect username or password":                          "用户名或密码错误",
	"User not found":                                          "用户不存在",
	"User not found or inactive":                              "用户不存在或已禁用",
	"Email not verified":                                      "邮箱未验证，请先验证邮箱",
	"Please verify your email first":                          "请先验证您的邮箱",
	"Account is disabled":                                     "账号已被禁用",
	"Your account has been disabled":                          "您的账号已被禁用",
	"Account is locked":                                       "账号已被锁定，请稍后再试",
	"Account is temporarily locked":                           "账号已被临时锁定",
	"Invalid token":                                           "无效的令牌",
	"Invalid refresh token":                                   "无效的刷新令牌",
	"Invalid verification token":                              "无效的验证链接",
	"Verification token has expired":                          "验证链接已过期",
	"Invalid reset token":                                     "无效的重置链接",
	"Reset token has expired":                                 "重置链接已过期",
	"Token expired":                                           "令牌已过期",
	"Not authenticated":                                       "请先登录",
	"Not enough permissions":                                  "权限不足",
	"Too many failed login attempts. Please try again later.": "登录尝试次数过多，请稍后再试",
	"Rate limit exceeded":                                     "请求过于频繁，请稍后再试",
	"File too large":                                          "文件太大",
	"Invalid file type":                                       "不支持的文件类型",
	"Network Error":                                           "网络错误，请检查网络连接",
	"Username already registered":                             "该用户名已被注册",
	"Email already registered":                                "该邮箱已被注册",
	"Image not found":                                         "图片不存在",
	"Album not found":                                         "相册不存在",
	"Permission denied":                                       "没有权限执行此操作",
	"Request failed":                                          "请求失败",
}

// supportedLocales lists the catalogs in matcher order. English is the
// identity catalog: server messages are already English.
var supportedLocales = []language.Tag{
	language.English,
	language.SimplifiedChinese,
}

var catalogs = []map[string]string{
	nil,
	zhHansMessages,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// Translator maps server error details to display text for one locale.
// Unknown messages pass through unchanged. Safe for concurrent use.
type Translator struct {
	tag   language.Tag
	table map[string]string
}

// NewTranslator picks the closest supported catalog for locale (a BCP 47
// tag such as "zh-CN" or "en-US"). An empty or unparseable locale selects
// English.
func NewTranslator(locale string) *Translator {
	_, idx := language.MatchStrings(localeMatcher, locale)

	return &Translator{
		tag:   supportedLocales[idx],
		table: catalogs[idx],
	}
}

// Locale returns the matched catalog tag.
func (t *Translator) Locale() language.Tag {
	return t.tag
}

// Translate returns the localized text for msg, or msg itself.
func (t *Translator) Translate(msg string) string {
	if t == nil {
		return msg
	}

	if localized, ok := t.table[msg]; ok {
		return localized
	}

	return msg
}
