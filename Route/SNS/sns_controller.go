package SNS

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wasdq1234/alter-ego/database"
	Auth_Route "github.com/wasdq1234/alter-ego/Route/Auth"
	Persona_Service "github.com/wasdq1234/alter-ego/service/Persona"
	SNS_Service "github.com/wasdq1234/alter-ego/service/SNS"
)

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID格式错误"})
		return 0, false
	}
	return uint(id), true
}

// verifyPersona 校验请求中的人格归属当前用户
func verifyPersona(c *gin.Context, personaID uint) bool {
	userID := Auth_Route.CurrentUserID(c)
	if err := Persona_Service.GlobalPersonaService.VerifyOwnership(personaID, userID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "人格不属于当前用户"})
		return false
	}
	return true
}

// feedParams 解析分页参数
func feedParams(c *gin.Context) (int, string) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return limit, c.Query("cursor")
}

// GlobalFeed 全站信息流
func GlobalFeed(c *gin.Context) {
	limit, cursor := feedParams(c)
	items, nextCursor, err := SNS_Service.GlobalSnsService.GlobalFeed(limit, cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "查询信息流失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": items, "next_cursor": nextCursor})
}

// FollowingFeed 某人格的关注信息流
func FollowingFeed(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}
	if !verifyPersona(c, personaID) {
		return
	}

	limit, cursor := feedParams(c)
	items, nextCursor, err := SNS_Service.GlobalSnsService.FollowingFeed(personaID, limit, cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "查询信息流失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": items, "next_cursor": nextCursor})
}

// CreatePost 以某个人格发帖
func CreatePost(c *gin.Context) {
	var req database.PostCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if req.Content == "" && req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "帖子内容不能为空"})
		return
	}
	if !verifyPersona(c, req.PersonaID) {
		return
	}

	post, err := SNS_Service.GlobalSnsService.CreatePost(req.PersonaID, req.Content, req.ImageURL, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "发帖失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         post.ID,
		"persona_id": post.PersonaID,
		"content":    post.Content,
		"image_url":  post.ImageURL,
		"created_at": post.CreatedAt,
	})
}

// GetPost 帖子详情
func GetPost(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	item, err := SNS_Service.GlobalSnsService.GetPost(postID)
	if err != nil {
		if errors.Is(err, SNS_Service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "帖子不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询帖子失败"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeletePost 删除帖子（帖子作者人格须归属当前用户）
func DeletePost(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	item, err := SNS_Service.GlobalSnsService.GetPost(postID)
	if err != nil {
		if errors.Is(err, SNS_Service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "帖子不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询帖子失败"})
		return
	}
	if !verifyPersona(c, item.PersonaID) {
		return
	}

	if err := SNS_Service.GlobalSnsService.DeletePost(postID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除帖子失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "帖子已删除"})
}

// CreateComment 评论帖子
func CreateComment(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	var req database.CommentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if !verifyPersona(c, req.PersonaID) {
		return
	}

	comment, err := SNS_Service.GlobalSnsService.CreateComment(postID, req.PersonaID, req.ParentID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, SNS_Service.ErrPostNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "帖子不存在"})
		case errors.Is(err, SNS_Service.ErrCommentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "父评论不存在"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "评论失败"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         comment.ID,
		"post_id":    comment.PostID,
		"persona_id": comment.PersonaID,
		"parent_id":  comment.ParentID,
		"content":    comment.Content,
		"created_at": comment.CreatedAt,
	})
}

// GetComments 帖子评论树
func GetComments(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	comments, err := SNS_Service.GlobalSnsService.GetComments(postID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询评论失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// DeleteComment 删除评论（评论作者人格须归属当前用户）
func DeleteComment(c *gin.Context) {
	commentID, ok := parseID(c, "comment_id")
	if !ok {
		return
	}

	var comment database.SnsComment
	if err := database.DB.First(&comment, commentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "评论不存在"})
		return
	}
	if !verifyPersona(c, comment.PersonaID) {
		return
	}

	if _, err := SNS_Service.GlobalSnsService.DeleteComment(commentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除评论失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "评论已删除"})
}

// ToggleLike 点赞/取消点赞
func ToggleLike(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	var req struct {
		PersonaID uint `json:"persona_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少persona_id"})
		return
	}
	if !verifyPersona(c, req.PersonaID) {
		return
	}

	liked, count, err := SNS_Service.GlobalSnsService.ToggleLike(postID, req.PersonaID)
	if err != nil {
		if errors.Is(err, SNS_Service.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "帖子不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "点赞失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "like_count": count})
}

// GetLikes 帖子点赞列表
func GetLikes(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}

	likes, err := SNS_Service.GlobalSnsService.GetLikes(postID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询点赞列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

// Follow 关注某人格
func Follow(c *gin.Context) {
	followingID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req database.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if !verifyPersona(c, req.FollowerID) {
		return
	}

	if _, err := SNS_Service.GlobalSnsService.Follow(req.FollowerID, followingID); err != nil {
		switch {
		case errors.Is(err, SNS_Service.ErrSelfFollow):
			c.JSON(http.StatusBadRequest, gin.H{"error": "不能关注自己"})
		case errors.Is(err, SNS_Service.ErrAlreadyFollowing):
			c.JSON(http.StatusConflict, gin.H{"error": "已经关注该人格"})
		case errors.Is(err, Persona_Service.ErrPersonaNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "人格不存在"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "关注失败"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "关注成功"})
}

// Unfollow 取消关注
func Unfollow(c *gin.Context) {
	followingID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	var req database.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}
	if !verifyPersona(c, req.FollowerID) {
		return
	}

	if err := SNS_Service.GlobalSnsService.Unfollow(req.FollowerID, followingID); err != nil {
		if errors.Is(err, SNS_Service.ErrNotFollowing) {
			c.JSON(http.StatusNotFound, gin.H{"error": "未关注该人格"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "取消关注失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已取消关注"})
}

// GetFollowers 粉丝列表
func GetFollowers(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	followers, err := SNS_Service.GlobalSnsService.GetFollowers(personaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询粉丝列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": followers})
}

// GetFollowing 关注列表
func GetFollowing(c *gin.Context) {
	personaID, ok := parseID(c, "persona_id")
	if !ok {
		return
	}

	following, err := SNS_Service.GlobalSnsService.GetFollowing(personaID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询关注列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}
