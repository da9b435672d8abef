// Package extract provides rule-based extraction of employee and date
// entities from Chinese finance questions, plus tool argument repair.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/finagent-ai/finagent"
)

// EmployeeEntity holds employee information recognized in a question.
type EmployeeEntity struct {
	Name       string
	EmployeeID string
	Department string
}

// IsZero reports whether nothing was recognized.
func (e EmployeeEntity) IsZero() bool {
	return e.Name == "" && e.EmployeeID == "" && e.Department == ""
}

// DateRangeEntity holds a date range recognized in a question. Dates are
// formatted YYYY-MM-DD.
type DateRangeEntity struct {
	StartDate string
	EndDate   string
	Month     int
	Year      int
}

// IsZero reports whether nothing was recognized.
func (d DateRangeEntity) IsZero() bool {
	return d.StartDate == "" && d.EndDate == ""
}

// Entities bundles everything recognized in one question.
type Entities struct {
	Employee  EmployeeEntity
	DateRange DateRangeEntity
}

var (
	monthPattern      = regexp.MustCompile(`(\d+)月份?`)
	employeeIDPattern = regexp.MustCompile(`(?i)\bE\d{3,}\b`)

	// Common Chinese surnames followed by a 1-3 character given name.
	namePattern = regexp.MustCompile(`[张李王刘陈杨黄赵吴周徐孙马朱胡郭何高林罗郑梁谢宋唐许韩冯邓曹彭曾肖田董袁潘于蒋蔡余杜叶程苏魏吕丁任沈姚卢姜崔钟谭陆汪范金石廖贾夏韦付方白邹孟熊秦邱江尹薛闫段雷侯龙史陶黎贺顾毛郝龚邵万钱严覃武戴莫孔向汤](?:[一二三四五六七八九十百千万亿兆零壹贰叁肆伍陆柒捌玖拾佰仟万亿兆]+|[a-zA-Z]+|[一-龥]{1,3})`)

	departmentPattern = regexp.MustCompile(`(.+?)(?:部|部门)`)

	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// Extractor recognizes entities in question text. The clock is injectable so
// relative date phrases ("上个月") are testable.
type Extractor struct {
	user finagent.UserContext
	now  func() time.Time
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithUserContext sets the identity used to resolve first-person pronouns.
func WithUserContext(user finagent.UserContext) ExtractorOption {
	return func(e *Extractor) {
		e.user = user
	}
}

// WithNow overrides the clock used for relative date phrases.
func WithNow(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		e.now = now
	}
}

// NewExtractor creates an entity extractor.
func NewExtractor(options ...ExtractorOption) *Extractor {
	e := &Extractor{now: time.Now}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExtractAll recognizes every supported entity kind in text.
func (e *Extractor) ExtractAll(text string) Entities {
	return Entities{
		Employee:  e.ExtractEmployee(text),
		DateRange: e.ExtractDateRange(text),
	}
}

// ExtractDateRange recognizes a date range in text.
//
// Supported phrases:
//   - "3月份" resolves to the full month in the current year
//   - "上半年" / "下半年" resolve to Jan 1 - Jun 30 / Jul 1 - Dec 31
//   - "上个月" resolves to the previous month, rolling over the year
//   - "本月" / "这个月" resolve to the current month
func (e *Extractor) ExtractDateRange(text string) DateRangeEntity {
	var entity DateRangeEntity
	now := e.now()
	currentYear := now.Year()
	currentMonth := int(now.Month())

	if m := monthPattern.FindStringSubmatch(text); m != nil {
		month, err := strconv.Atoi(m[1])
		if err == nil && month >= 1 && month <= 12 {
			entity.Month = month
			entity.Year = currentYear
			entity.StartDate = fmt.Sprintf("%d-%02d-01", currentYear, month)
			entity.EndDate = monthEnd(currentYear, month)
			return entity
		}
	}

	if strings.Contains(text, "上半年") || strings.Contains(text, "前半年") {
		entity.StartDate = fmt.Sprintf("%d-01-01", currentYear)
		entity.EndDate = fmt.Sprintf("%d-06-30", currentYear)
		return entity
	}

	if strings.Contains(text, "下半年") || strings.Contains(text, "后半年") {
		entity.StartDate = fmt.Sprintf("%d-07-01", currentYear)
		entity.EndDate = fmt.Sprintf("%d-12-31", currentYear)
		return entity
	}

	if strings.Contains(text, "上个月") || strings.Contains(text, "上月") {
		lastMonth, lastYear := currentMonth-1, currentYear
		if currentMonth == 1 {
			lastMonth, lastYear = 12, currentYear-1
		}
		entity.Month = lastMonth
		entity.Year = lastYear
		entity.StartDate = fmt.Sprintf("%d-%02d-01", lastYear, lastMonth)
		entity.EndDate = monthEnd(lastYear, lastMonth)
		return entity
	}

	if strings.Contains(text, "本月") || strings.Contains(text, "这个月") {
		entity.Month = currentMonth
		entity.Year = currentYear
		entity.StartDate = fmt.Sprintf("%d-%02d-01", currentYear, currentMonth)
		entity.EndDate = monthEnd(currentYear, currentMonth)
		return entity
	}

	return entity
}

// monthEnd returns the last day of the given month as YYYY-MM-DD.
func monthEnd(year, month int) string {
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	last := firstOfNext.AddDate(0, 0, -1)
	return last.Format("2006-01-02")
}

// ExtractEmployee recognizes employee information in text: first-person
// pronouns resolve through the configured user, then employee IDs (E001
// format), then surname-prefixed names, then department phrases.
func (e *Extractor) ExtractEmployee(text string) EmployeeEntity {
	var entity EmployeeEntity

	if strings.Contains(text, "我") && !e.user.IsZero() {
		entity.Name = e.user.Name
		entity.EmployeeID = e.user.EmployeeID
		entity.Department = e.user.Department
		return entity
	}

	if m := employeeIDPattern.FindString(text); m != "" {
		entity.EmployeeID = strings.ToUpper(m)
	}

	if m := namePattern.FindString(text); m != "" && entity.EmployeeID == "" {
		if n := len([]rune(m)); n >= 2 && n <= 4 {
			entity.Name = m
		}
	}

	if m := departmentPattern.FindStringSubmatch(text); m != nil {
		entity.Department = m[1] + "部"
	}

	return entity
}

// ParseDate normalizes a date string to YYYY-MM-DD. Unparseable input is
// returned unchanged for the caller to handle.
func ParseDate(dateStr string) string {
	if dateStr == "" {
		return dateStr
	}
	if isoDatePattern.MatchString(dateStr) {
		return dateStr
	}
	for _, layout := range []string{"2006-1-2", "2006/01/02", "2006/1/2", "2006年01月02日", "2006年1月2日"} {
		if dt, err := time.Parse(layout, dateStr); err == nil {
			return dt.Format("2006-01-02")
		}
	}
	return dateStr
}
