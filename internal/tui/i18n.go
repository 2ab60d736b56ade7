package tui

// Supported locales: "en" (default) and "zh".

var currentLocale = "en"

// SetLocale changes the active locale. Unknown locales are ignored.
func SetLocale(locale string) {
	if _, ok := locales[locale]; ok {
		currentLocale = locale
	}
}

func CurrentLocale() string {
	return currentLocale
}

// ToggleLocale switches between en and zh.
func ToggleLocale() {
	if currentLocale == "zh" {
		currentLocale = "en"
	} else {
		currentLocale = "zh"
	}
}

// T returns the translation of key, falling back to English and then to the key itself.
func T(key string) string {
	if m, ok := locales[currentLocale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := enStrings[key]; ok {
		return v
	}
	return key
}

var locales = map[string]map[string]string{
	"en": enStrings,
	"zh": zhStrings,
}

var (
	enTabNames = []string{"Candidates", "Questions", "Quiz", "Result", "Logs"}
	zhTabNames = []string{"候选人", "题目", "答题", "结果", "日志"}
)

// TabNames returns tab names in the current locale.
func TabNames() []string {
	if currentLocale == "zh" {
		return zhTabNames
	}
	return enTabNames
}

var enStrings = map[string]string{
	// common
	"loading":      "Loading...",
	"error_prefix": "⚠ Error: ",
	"copied":       "✓ Copied to clipboard",
	"opened":       "✓ Opened in browser",
	"any":          "any",

	// status bar
	"status_left":      " Assessly terminal",
	"status_right":     "Tab/Shift+Tab: switch • L: language • Ctrl+X: logout • q/Ctrl+C: quit ",
	"initializing_tui": "Initializing...",

	// login
	"login_title":      "🔐 Sign in",
	"login_help":       " Enter your email and password. Tab switches field.",
	"login_email":      "Email",
	"login_password":   "Password",
	"login_enter":      " Enter: sign in • Ctrl+C: quit • Ctrl+L: language",
	"login_connecting": "Signing in...",
	"login_required":   "Email and password are required",
	"login_fail":       "Sign in failed: %s",
	"session_expired":  "Session expired. Please login again.",

	// candidates
	"cand_title":     "👤 Candidates",
	"cand_help":      " [↑↓/jk] navigate • [Enter] select • [/] filter • [r] refresh",
	"cand_empty":     "  No candidates found",
	"cand_filter":    "Filter by name",
	"cand_selected":  "Candidate: %s",
	"cand_none":      "No candidate selected",
	"cand_filtering": " Enter: apply • Esc: cancel",

	// questions
	"q_title":     "📚 Questions",
	"q_help1":     " [t] topic • [g] language • [p] position • [z] page size • [Enter] search • [r] reload filters",
	"q_help2":     " [↑↓/jk] navigate • [x] remove from quiz • [c] clear",
	"q_empty":     "  No questions loaded. Press Enter to search.",
	"q_topic":     "Topic",
	"q_language":  "Language",
	"q_position":  "Position",
	"q_page_size": "Page size",
	"q_count":     "%d question(s) in quiz",
	"q_meta":      "difficulty %d • %d options",

	// quiz
	"quiz_title":          "📝 Quiz",
	"quiz_help":           " [←→/hl] question • [1-9] choose • [s] skip • [n] note • [Ctrl+S] submit",
	"quiz_note_help":      " Enter: save note • Esc: cancel",
	"quiz_empty":          "  The quiz is empty. Search for questions first.",
	"quiz_progress":       "Question %d of %d • answered %d",
	"quiz_need_candidate": "select a candidate before submitting",
	"quiz_skipped":        "skipped",
	"quiz_note":           "Note",
	"quiz_submitting":     "Submitting...",

	// result
	"result_title":  "🏁 Result",
	"result_help":   " [c] copy submission ID • [o] open review page • [↑↓] scroll",
	"result_empty":  "  Nothing submitted yet.",
	"result_id":     "Submission",
	"result_score":  "Correct %d/%d (%d%%) • skipped %d",
	"result_answer": "answer",

	// logs
	"logs_title":       "📋 Logs",
	"logs_auto_scroll": "● AUTO-SCROLL",
	"logs_paused":      "○ PAUSED",
	"logs_filter":      "Filter",
	"logs_lines":       "Lines",
	"logs_help":        " [a] auto-scroll • [c] clear • [1] all [2] info+ [3] warn+ [4] error • [↑↓] scroll",
	"logs_waiting":     "  Waiting for log output...",
}

var zhStrings = map[string]string{
	"loading":      "加载中...",
	"error_prefix": "⚠ 错误: ",
	"copied":       "✓ 已复制到剪贴板",
	"opened":       "✓ 已在浏览器中打开",
	"any":          "全部",

	"status_left":      " Assessly 终端",
	"status_right":     "Tab/Shift+Tab: 切换 • L: 语言 • Ctrl+X: 退出登录 • q/Ctrl+C: 退出 ",
	"initializing_tui": "正在初始化...",

	"login_title":      "🔐 登录",
	"login_help":       " 请输入邮箱和密码，Tab 切换输入框",
	"login_email":      "邮箱",
	"login_password":   "密码",
	"login_enter":      " Enter: 登录 • Ctrl+C: 退出 • Ctrl+L: 语言",
	"login_connecting": "正在登录...",
	"login_required":   "请输入邮箱和密码",
	"login_fail":       "登录失败：%s",
	"session_expired":  "会话已过期，请重新登录",

	"cand_title":     "👤 候选人",
	"cand_help":      " [↑↓/jk] 导航 • [Enter] 选择 • [/] 筛选 • [r] 刷新",
	"cand_empty":     "  没有候选人",
	"cand_filter":    "按姓名筛选",
	"cand_selected":  "候选人：%s",
	"cand_none":      "未选择候选人",
	"cand_filtering": " Enter: 应用 • Esc: 取消",

	"q_title":     "📚 题目",
	"q_help1":     " [t] 主题 • [g] 语言 • [p] 职位 • [z] 每页数量 • [Enter] 搜索 • [r] 重新加载筛选项",
	"q_help2":     " [↑↓/jk] 导航 • [x] 从答题中移除 • [c] 清空",
	"q_empty":     "  尚未加载题目，按 Enter 搜索",
	"q_topic":     "主题",
	"q_language":  "语言",
	"q_position":  "职位",
	"q_page_size": "每页",
	"q_count":     "答题中共 %d 道题",
	"q_meta":      "难度 %d • %d 个选项",

	"quiz_title":          "📝 答题",
	"quiz_help":           " [←→/hl] 切换题目 • [1-9] 选择 • [s] 跳过 • [n] 备注 • [Ctrl+S] 提交",
	"quiz_note_help":      " Enter: 保存备注 • Esc: 取消",
	"quiz_empty":          "  答题为空，请先搜索题目",
	"quiz_progress":       "第 %d / %d 题 • 已作答 %d",
	"quiz_need_candidate": "提交前请先选择候选人",
	"quiz_skipped":        "已跳过",
	"quiz_note":           "备注",
	"quiz_submitting":     "正在提交...",

	"result_title":  "🏁 结果",
	"result_help":   " [c] 复制提交 ID • [o] 打开评审页面 • [↑↓] 滚动",
	"result_empty":  "  尚未提交",
	"result_id":     "提交",
	"result_score":  "正确 %d/%d (%d%%) • 跳过 %d",
	"result_answer": "答案",

	"logs_title":       "📋 日志",
	"logs_auto_scroll": "● 自动滚动",
	"logs_paused":      "○ 已暂停",
	"logs_filter":      "过滤",
	"logs_lines":       "行数",
	"logs_help":        " [a] 自动滚动 • [c] 清除 • [1] 全部 [2] info+ [3] warn+ [4] error • [↑↓] 滚动",
	"logs_waiting":     "  等待日志输出...",
}
