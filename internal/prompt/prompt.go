// Package prompt 定义对话模式及其系统提示词。
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"roofsite-go/pkg/siteconfig"
)

// 模式名称，与请求体中的 mode 字段一致。
const (
	ModeOnboarding = "onboarding"
	ModeEdit       = "edit"
)

var (
	// ErrMissingCurrentConfig 表示 edit 模式缺少 currentConfig。
	ErrMissingCurrentConfig = errors.New("currentConfig is required in edit mode")
	// ErrUnknownMode 表示未知的 mode。
	ErrUnknownMode = errors.New("unknown chat mode")
)

// Mode 是对话模式：Onboarding 或 Edit。
type Mode interface {
	Name() string
	// SystemPrompt 生成该模式的系统提示词。
	SystemPrompt() (string, error)
	// ParsesChanges 表示该模式下是否解析 <changes> 块。
	ParsesChanges() bool
}

// Onboarding 逐个问题收集商家信息。
type Onboarding struct{}

// Edit 基于当前配置接受自由的修改请求。
type Edit struct {
	Current siteconfig.SiteConfig
}

func (Onboarding) Name() string        { return ModeOnboarding }
func (Onboarding) ParsesChanges() bool { return false }

func (Onboarding) SystemPrompt() (string, error) {
	return render(onboardingTmpl, promptData{Topics: OnboardingTopics})
}

func (Edit) Name() string        { return ModeEdit }
func (Edit) ParsesChanges() bool { return true }

func (e Edit) SystemPrompt() (string, error) {
	return render(editTmpl, promptData{CurrentConfig: e.Current.String(), WithChanges: true})
}

// FromRequest 根据请求中的 mode 与 currentConfig 选择模式，mode 为空时默认 onboarding。
func FromRequest(mode string, current siteconfig.SiteConfig) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeOnboarding:
		return Onboarding{}, nil
	case ModeEdit:
		if current == nil {
			return nil, ErrMissingCurrentConfig
		}
		return Edit{Current: current}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// OnboardingTopics 是 onboarding 模式依次询问的主题。
var OnboardingTopics = []string{
	"company name",
	"years in business",
	"service areas (cities or counties served)",
	"services offered (repair, replacement, inspections, gutters, storm damage, etc.)",
	"what sets the company apart from competitors",
	"contractor license number",
	"certifications (manufacturer certifications, insurance, BBB, etc.)",
}

const sharedInstructions = `
## Output contract
Only when you have enough information, end your reply with the COMPLETE site configuration as JSON wrapped exactly like this:
<site_config>{ ...complete JSON document... }</site_config>
Use these fields when known: businessName, tagline, phone, email, yearsInBusiness, heroHeadline, heroSubheadline, services (array of {name, description}), serviceAreas (array of strings), licenseNumber, certifications (array of strings), testimonials (array of {name, quote, location}), gallery (array of {title, imageUrl}), differentiator.
{{- if .WithChanges}}
Directly after the config, list what you changed as bullets wrapped exactly like this:
<changes>
- change description one
- change description two
</changes>
{{- end}}
Never emit the tags before you have enough information; until then reply with ordinary conversational text only.
The JSON inside <site_config> must be valid JSON with no comments and no trailing commas.`

var funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

var onboardingTmpl = template.Must(template.New("onboarding").Funcs(funcs).Parse(`You are a friendly website assistant helping a roofing contractor set up their marketing website.
Ask ONE question at a time, in this order, and wait for the answer before moving on:
{{- range $i, $t := .Topics}}
{{inc $i}}. {{$t}}
{{- end}}
Keep each message short. If an answer is vague, ask one brief follow-up before continuing.
Once every topic is answered, write compelling hero copy, service descriptions and a tagline from the answers.
` + sharedInstructions))

var editTmpl = template.Must(template.New("edit").Funcs(funcs).Parse(`You are a website assistant helping a roofing contractor edit their existing marketing website.
The current site configuration is:
{{.CurrentConfig}}

The contractor will describe changes in plain language. Briefly confirm what you will change, then apply it.
Always return the COMPLETE updated document: keep every field you were not asked to change exactly as it is. Never return a partial diff.
Lists (services, serviceAreas, testimonials, gallery, certifications) must be returned in full.
` + sharedInstructions))

type promptData struct {
	Topics        []string
	CurrentConfig string
	WithChanges   bool
}

func render(t *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}

var blogTmpl = template.Must(template.New("blog").Parse(`You write search-friendly blog posts for a roofing contractor's website.
{{- if .Business}}
The company is {{.Business}}.
{{- end}}
{{- if .Areas}}
It serves: {{.Areas}}.
{{- end}}
Write a post of 600 to 900 words about: {{.Topic}}
Start with a single title line beginning with "# ", then the body in Markdown.
Use a helpful, practical tone for homeowners and finish with a short call to action to request a free inspection.`))

// BlogPost 生成博客文章的系统提示词，site 可为空。
func BlogPost(topic string, site siteconfig.SiteConfig) (string, error) {
	data := struct {
		Topic    string
		Business string
		Areas    string
	}{Topic: topic, Business: site.BusinessName()}
	if areas, ok := site[siteconfig.FieldServiceAreas].([]any); ok {
		names := make([]string, 0, len(areas))
		for _, a := range areas {
			if s, ok := a.(string); ok && s != "" {
				names = append(names, s)
			}
		}
		data.Areas = strings.Join(names, ", ")
	}

	var sb strings.Builder
	if err := blogTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render blog prompt: %w", err)
	}
	return sb.String(), nil
}
