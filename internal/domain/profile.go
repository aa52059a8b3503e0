package domain

// Profile is the static hero content of the site.
type Profile struct {
	Name     string    `json:"name"`
	Welcome  string    `json:"welcome"`
	Tagline  string    `json:"tagline"`
	Sections []Section `json:"sections"`
}

// Section is one hero card on the landing page.
type Section struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Link   string `json:"link"`
}

// DefaultProfile returns the built-in site content.
func DefaultProfile() *Profile {
	return &Profile{
		Name:    "YiyuBot 的空间",
		Welcome: "欢迎来到 Yiyu 的私人空间",
		Tagline: "持续迭代、可拓展",
		Sections: []Section{
			{
				Title:  "最新计划",
				Detail: "把握最热剧集、最新日程和提醒。",
				Link:   "#schedule",
			},
			{
				Title:  "写作与灵感",
				Detail: "记录想法、展示景象、连接外部资源。",
				Link:   "#notes",
			},
			{
				Title:  "工具箱",
				Detail: "可扩展的 API、个人素材、协作入口。",
				Link:   "#tools",
			},
		},
	}
}
