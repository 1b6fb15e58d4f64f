package Activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/wasdq1234/alter-ego/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 决策系统提示词模板。要求模型只输出严格JSON，目标ID统一用字符串
const decisionSystemPromptTemplate = `You are %s, an AI persona on a social network.
Personality: %s
Speaking style: %s

Decide what activity to perform based on the instruction and the current context.
You can choose one of these actions:
- "post": write a new post (set "content", optionally set "needs_image" to true if an image would fit)
- "comment": comment on an existing post (set "target_post_id" and "content")
- "like": like an existing post (set "target_post_id")
- "follow": follow another persona (set "target_persona_id")

Respond with ONLY a JSON object, no other text:
{"activity_type": "post|comment|like|follow", "content": "...", "target_post_id": "id or null", "target_persona_id": "id or null", "needs_image": false}
All ids must be strings. Use null when a field does not apply.`

const (
	contextPostLimit       = 10
	contextLogFetchLimit   = 10
	contextLogSummaryLimit = 5
	contextPostContentCap  = 100
	contextLogDetailCap    = 80
)

// ActivityRunner 调度器与路由看到的引擎接口
type ActivityRunner interface {
	RunActivity(personaID uint, command, triggeredBy string, userID uint) ActivityResult
}

// ImageGenerator 发帖配图的生成入口，由图片服务适配实现
type ImageGenerator interface {
	GeneratePostImage(persona *database.Persona, content string) (imageURL, filePath string, err error)
}

// ActivityResult 一次活动运行的结果
type ActivityResult struct {
	PersonaID       uint   `json:"persona_id"`
	ActivityType    string `json:"activity_type"`
	Content         string `json:"content,omitempty"`
	TargetPostID    uint   `json:"target_post_id,omitempty"`
	TargetPersonaID uint   `json:"target_persona_id,omitempty"`
	CreatedID       uint   `json:"created_id,omitempty"` // 本次插入的新行ID（帖子/评论/点赞/关注）
	ImageURL        string `json:"image_url,omitempty"`
	Result          string `json:"result"`
	Detail          string `json:"detail,omitempty"`
}

// GlobalActivityEngine 全局活动引擎实例
var GlobalActivityEngine ActivityRunner

// ActivityEngine 活动引擎：收集上下文 → 决策 → (配图) → 执行 → 记日志。
// 任何一步失败都降级而不是中断，RunActivity 永远返回一个结果
type ActivityEngine struct {
	db         *gorm.DB
	completion CompletionClient
	imageGen   ImageGenerator // 可为nil，此时跳过配图
}

func NewActivityEngine(db *gorm.DB, completion CompletionClient, imageGen ImageGenerator) (*ActivityEngine, error) {
	if db == nil {
		return nil, errors.New("数据库连接不能为空")
	}
	if completion == nil {
		return nil, errors.New("补全客户端不能为空")
	}

	engine := &ActivityEngine{db: db, completion: completion, imageGen: imageGen}
	GlobalActivityEngine = engine
	return engine, nil
}

// feedPost 上下文里的帖子摘要
type feedPost struct {
	ID         uint
	PersonaID  uint
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// activityState 单次运行的流水线状态
type activityState struct {
	personaID   uint
	command     string
	triggeredBy string
	userID      uint

	persona     *database.Persona
	recentPosts []feedPost
	recentLogs  []database.ActivityLog

	activityType    string
	content         string
	targetPostID    uint
	targetPersonaID uint
	needsImage      bool
	imageURL        string
	imageFilePath   string
	createdID       uint

	result string
	detail string
}

// RunActivity 运行一次完整活动流水线。不返回error：
// 每个阶段的失败都记录并降级，最终结果写入活动日志
func (e *ActivityEngine) RunActivity(personaID uint, command, triggeredBy string, userID uint) ActivityResult {
	state := &activityState{
		personaID:   personaID,
		command:     command,
		triggeredBy: triggeredBy,
		userID:      userID,
	}

	stages := []struct {
		name string
		run  func(*activityState) string
	}{
		{"collect_context", e.collectContext},
		{"decide_activity", e.decideActivity},
		{"generate_image", e.generateImage},
		{"execute_action", e.executeAction},
	}
	for _, stage := range stages {
		if warn := stage.run(state); warn != "" {
			log.Printf("活动流程降级 (persona=%d, stage=%s): %s", personaID, stage.name, warn)
		}
	}

	e.logActivity(state)

	return ActivityResult{
		PersonaID:       state.personaID,
		ActivityType:    state.activityType,
		Content:         state.content,
		TargetPostID:    state.targetPostID,
		TargetPersonaID: state.targetPersonaID,
		CreatedID:       state.createdID,
		ImageURL:        state.imageURL,
		Result:          state.result,
		Detail:          state.detail,
	}
}

// collectContext 加载人格、近期信息流和近期活动日志。
// 人格查不到时用空上下文继续走流水线，后续阶段照常降级。
// 有关注时信息流取关注对象的帖子，否则取全网帖子但排除自己的
func (e *ActivityEngine) collectContext(state *activityState) string {
	var persona database.Persona
	if err := e.db.First(&persona, state.personaID).Error; err != nil {
		empty := &database.Persona{}
		empty.ID = state.personaID
		state.persona = empty
		return fmt.Sprintf("查询人格失败，使用空上下文继续: %v", err)
	}
	state.persona = &persona

	warn := ""

	var followingIDs []uint
	if err := e.db.Model(&database.SnsFollow{}).
		Where("follower_id = ?", state.personaID).
		Pluck("following_id", &followingIDs).Error; err != nil {
		warn = fmt.Sprintf("查询关注列表失败: %v", err)
	}

	query := e.db.Order("created_at DESC").Limit(contextPostLimit)
	if len(followingIDs) > 0 {
		query = query.Where("persona_id IN ?", followingIDs)
	} else {
		query = query.Where("persona_id <> ?", state.personaID)
	}

	var posts []database.SnsPost
	if err := query.Find(&posts).Error; err != nil {
		warn = fmt.Sprintf("查询近期帖子失败: %v", err)
	} else {
		names := e.personaNames(posts)
		for _, p := range posts {
			state.recentPosts = append(state.recentPosts, feedPost{
				ID:         p.ID,
				PersonaID:  p.PersonaID,
				AuthorName: names[p.PersonaID],
				Content:    capRunes(p.Content, contextPostContentCap),
				CreatedAt:  p.CreatedAt,
			})
		}
	}

	if err := e.db.Where("persona_id = ?", state.personaID).
		Order("created_at DESC").Limit(contextLogFetchLimit).
		Find(&state.recentLogs).Error; err != nil {
		warn = fmt.Sprintf("查询近期活动日志失败: %v", err)
	}

	return warn
}

func (e *ActivityEngine) personaNames(posts []database.SnsPost) map[uint]string {
	ids := make([]uint, 0, len(posts))
	seen := make(map[uint]bool)
	for _, p := range posts {
		if !seen[p.PersonaID] {
			seen[p.PersonaID] = true
			ids = append(ids, p.PersonaID)
		}
	}
	names := make(map[uint]string)
	if len(ids) == 0 {
		return names
	}
	var personas []database.Persona
	if err := e.db.Where("id IN ?", ids).Find(&personas).Error; err != nil {
		return names
	}
	for _, p := range personas {
		names[p.ID] = p.Name
	}
	return names
}

// decision 决策JSON。目标ID由模型以字符串给出
type decision struct {
	ActivityType    string      `json:"activity_type"`
	Content         string      `json:"content"`
	TargetPostID    interface{} `json:"target_post_id"`
	TargetPersonaID interface{} `json:"target_persona_id"`
	NeedsImage      bool        `json:"needs_image"`
}

// decideActivity 调用补全服务决定要做什么。
// 调用失败或JSON解析失败时降级为发一条 "(<指令>)" 帖子
func (e *ActivityEngine) decideActivity(state *activityState) string {
	systemPrompt := fmt.Sprintf(decisionSystemPromptTemplate,
		state.persona.Name, state.persona.Personality, state.persona.SpeakingStyle)
	userMessage := e.buildContextMessage(state)

	fallback := func(reason string) string {
		state.activityType = "post"
		state.content = "(" + state.command + ")"
		state.needsImage = false
		return reason
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	raw, err := e.completion.Complete(ctx, systemPrompt, userMessage)
	if err != nil {
		return fallback(fmt.Sprintf("决策调用失败: %v", err))
	}

	var d decision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &d); err != nil {
		return fallback(fmt.Sprintf("决策JSON解析失败: %v", err))
	}

	switch d.ActivityType {
	case "post", "comment", "like", "follow":
	default:
		return fallback(fmt.Sprintf("未知的活动类型: %q", d.ActivityType))
	}

	state.activityType = d.ActivityType
	state.content = d.Content
	state.targetPostID = parseTargetID(d.TargetPostID)
	state.targetPersonaID = parseTargetID(d.TargetPersonaID)
	state.needsImage = d.NeedsImage
	return ""
}

// buildContextMessage 把指令、近期帖子、近期活动拼成决策输入
func (e *ActivityEngine) buildContextMessage(state *activityState) string {
	var b strings.Builder
	b.WriteString("Instruction: ")
	b.WriteString(state.command)
	b.WriteString("\n\nRecent posts on the network:\n")
	if len(state.recentPosts) == 0 {
		b.WriteString("(no posts yet)\n")
	}
	for _, p := range state.recentPosts {
		fmt.Fprintf(&b, "- post_id=%d author=%s(persona_id=%d): %s\n", p.ID, p.AuthorName, p.PersonaID, p.Content)
	}
	b.WriteString("\nYour recent activities:\n")
	if len(state.recentLogs) == 0 {
		b.WriteString("(none)\n")
	}
	for i, l := range state.recentLogs {
		if i >= contextLogSummaryLimit {
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", l.ActivityType, capRunes(l.Detail, contextLogDetailCap))
	}
	return b.String()
}

// generateImage 发帖且决策要求配图时生成图片。失败只降级为纯文字帖
func (e *ActivityEngine) generateImage(state *activityState) string {
	if !state.needsImage || state.activityType != "post" {
		return ""
	}
	if e.imageGen == nil {
		return "图像生成未配置，跳过配图"
	}

	imageURL, filePath, err := e.imageGen.GeneratePostImage(state.persona, state.content)
	if err != nil {
		return fmt.Sprintf("配图生成失败: %v", err)
	}
	state.imageURL = imageURL
	state.imageFilePath = filePath
	return ""
}

// executeAction 执行决策。目标缺失或不存在时评论降级为发帖，
// 点赞/关注冲突视为幂等成功
func (e *ActivityEngine) executeAction(state *activityState) string {
	switch state.activityType {
	case "post":
		return e.executePost(state)
	case "comment":
		return e.executeComment(state)
	case "like":
		return e.executeLike(state)
	case "follow":
		return e.executeFollow(state)
	}
	state.result = "failed"
	state.detail = "没有可执行的活动"
	return ""
}

func (e *ActivityEngine) executePost(state *activityState) string {
	post := &database.SnsPost{
		PersonaID:     state.personaID,
		Content:       state.content,
		ImageURL:      state.imageURL,
		ImageFilePath: state.imageFilePath,
	}
	if err := e.db.Create(post).Error; err != nil {
		state.result = "failed"
		state.detail = "发帖失败"
		return fmt.Sprintf("发帖失败: %v", err)
	}
	state.targetPostID = post.ID
	state.createdID = post.ID
	state.result = "posted"
	return ""
}

func (e *ActivityEngine) executeComment(state *activityState) string {
	warn := ""
	if state.targetPostID != 0 {
		var count int64
		e.db.Model(&database.SnsPost{}).Where("id = ?", state.targetPostID).Count(&count)
		if count == 0 {
			warn = fmt.Sprintf("评论目标帖子不存在 (post=%d)，降级为发帖", state.targetPostID)
			state.targetPostID = 0
		}
	} else {
		warn = "评论缺少目标帖子，降级为发帖"
	}

	if state.targetPostID == 0 {
		state.activityType = "post"
		if postWarn := e.executePost(state); postWarn != "" {
			return postWarn
		}
		return warn
	}

	comment := &database.SnsComment{
		PostID:    state.targetPostID,
		PersonaID: state.personaID,
		Content:   state.content,
	}
	if err := e.db.Create(comment).Error; err != nil {
		state.result = "failed"
		state.detail = "评论失败"
		return fmt.Sprintf("评论失败: %v", err)
	}
	state.createdID = comment.ID
	state.result = "commented"
	return warn
}

func (e *ActivityEngine) executeLike(state *activityState) string {
	if state.targetPostID == 0 {
		state.result = "skipped"
		state.detail = "点赞缺少目标帖子"
		return "点赞缺少目标帖子"
	}
	var count int64
	e.db.Model(&database.SnsPost{}).Where("id = ?", state.targetPostID).Count(&count)
	if count == 0 {
		state.result = "skipped"
		state.detail = "点赞目标帖子不存在"
		return fmt.Sprintf("点赞目标帖子不存在 (post=%d)", state.targetPostID)
	}

	like := &database.SnsLike{PostID: state.targetPostID, PersonaID: state.personaID}
	result := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if result.Error != nil {
		state.result = "failed"
		state.detail = "点赞失败"
		return fmt.Sprintf("点赞失败: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		state.result = "already_liked"
		return ""
	}
	state.createdID = like.ID
	state.result = "liked"
	return ""
}

func (e *ActivityEngine) executeFollow(state *activityState) string {
	if state.targetPersonaID == 0 || state.targetPersonaID == state.personaID {
		state.result = "skipped"
		state.detail = "关注缺少有效目标"
		return "关注缺少有效目标"
	}
	var count int64
	e.db.Model(&database.Persona{}).Where("id = ?", state.targetPersonaID).Count(&count)
	if count == 0 {
		state.result = "skipped"
		state.detail = "关注目标人格不存在"
		return fmt.Sprintf("关注目标人格不存在 (persona=%d)", state.targetPersonaID)
	}

	follow := &database.SnsFollow{FollowerID: state.personaID, FollowingID: state.targetPersonaID}
	result := e.db.Clauses(clause.OnConflict{DoNothing: true}).Create(follow)
	if result.Error != nil {
		state.result = "failed"
		state.detail = "关注失败"
		return fmt.Sprintf("关注失败: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		state.result = "already_following"
		return ""
	}
	state.createdID = follow.ID
	state.result = "followed"
	return ""
}

// logActivity 写活动日志。日志写入失败只打印，不影响结果
func (e *ActivityEngine) logActivity(state *activityState) {
	detail := map[string]interface{}{
		"command": state.command,
		"result":  state.result,
	}
	if state.content != "" {
		detail["content"] = state.content
	}
	if state.targetPostID != 0 {
		detail["target_post_id"] = state.targetPostID
	}
	if state.targetPersonaID != 0 {
		detail["target_persona_id"] = state.targetPersonaID
	}
	if state.imageURL != "" {
		detail["image_url"] = state.imageURL
	}
	if state.createdID != 0 {
		// 按活动类型记录本次插入的新行ID
		switch state.activityType {
		case "post":
			detail["post_id"] = state.createdID
		case "comment":
			detail["comment_id"] = state.createdID
		case "like":
			detail["like_id"] = state.createdID
		case "follow":
			detail["follow_id"] = state.createdID
		}
	}
	if state.detail != "" {
		detail["detail"] = state.detail
	}
	data, err := json.Marshal(detail)
	if err != nil {
		data = []byte("{}")
	}

	activityType := state.activityType
	if activityType == "" {
		activityType = "unknown"
	}
	entry := &database.ActivityLog{
		PersonaID:    state.personaID,
		ActivityType: activityType,
		Detail:       string(data),
		TriggeredBy:  state.triggeredBy,
	}
	if err := e.db.Create(entry).Error; err != nil {
		log.Printf("写活动日志失败 (persona=%d): %v", state.personaID, err)
	}
}

// stripCodeFence 去掉模型输出外层的 ``` 围栏
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// 去掉围栏行上的语言标记，如 ```json
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseTargetID 模型给的目标ID可能是字符串、数字或null
func parseTargetID(v interface{}) uint {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return uint(n)
	case float64:
		if t < 0 {
			return 0
		}
		return uint(t)
	}
	return 0
}

// capRunes 按字符截断，避免把多字节字符切坏
func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
