package main

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/models"
	"github.com/qianlnk/mafia/services"
	"github.com/qianlnk/mafia/storage"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有跨域请求，生产环境中应该更严格
		},
	}

	cfg          *config.Config
	store        *storage.Store
	registry     *services.SessionRegistry
	webSocketMgr *services.WebSocketManager
)

func init() {
	// 设置日志格式，包含文件名和行号
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	var err error
	cfg, err = config.Load(os.Getenv("MAFIA_CONFIG"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	store, err = storage.Open(cfg.DatabaseFile)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	webSocketMgr = services.NewWebSocketManager()
	registry = services.NewSessionRegistry(cfg, webSocketMgr, store)
	webSocketMgr.SetRegistry(registry)

	log.Printf("初始化完成: 配置、数据库、WebSocket管理器和会话注册表已就绪")
}

func main() {
	r := gin.Default()

	// 设置跨域中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// WebSocket连接处理
	r.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("升级WebSocket连接失败: %v", err)
			return
		}

		sessionID := c.Query("session")
		playerID := c.Query("player")
		if sessionID == "" || playerID == "" {
			log.Printf("缺少必要的连接参数")
			ws.Close()
			return
		}

		webSocketMgr.RegisterConnection(playerID, ws)
		webSocketMgr.JoinSession(sessionID, playerID)
	})

	// API路由组
	api := r.Group("/api")
	{
		// 会话相关
		api.POST("/sessions", createSession)
		api.GET("/sessions", listSessions)
		api.GET("/sessions/:id", getSessionStatus)
		api.POST("/sessions/:id/join", joinSession)
		api.POST("/sessions/:id/bots", addBots)
		api.POST("/sessions/:id/start", startGame)

		// 游戏操作
		api.POST("/game/action", gameAction)

		// 积分和统计
		api.GET("/leaderboard", leaderboard)
		api.GET("/users/:externalId/stats", userStats)
	}

	log.Printf("服务器启动在 %s 端口", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal("服务器启动失败:", err)
	}
}

// API处理函数
func createSession(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := registry.CreateSession(req.Name)
	c.JSON(http.StatusOK, session)
}

func listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": registry.List()})
}

func getSessionStatus(c *gin.Context) {
	coordinator, exists := registry.Get(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrSessionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, coordinator.Status())
}

func joinSession(c *gin.Context) {
	sessionID := c.Param("id")
	var player models.Player
	if err := c.ShouldBindJSON(&player); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := registry.JoinSession(sessionID, player); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "加入会话成功"})
}

func addBots(c *gin.Context) {
	sessionID := c.Param("id")
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的机器人数量"})
		return
	}

	if err := registry.AddBots(sessionID, count); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "机器人已加入"})
}

func startGame(c *gin.Context) {
	coordinator, exists := registry.Get(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrSessionNotFound.Error()})
		return
	}

	if err := coordinator.StartGame(); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "游戏已开始"})
}

func gameAction(c *gin.Context) {
	var action models.GameAction
	if err := c.ShouldBindJSON(&action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coordinator, exists := registry.Get(action.SessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrSessionNotFound.Error()})
		return
	}

	if err := coordinator.SubmitAction(action); err != nil {
		c.JSON(statusCodeFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "动作执行成功"})
}

func leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}

	records, err := store.TopPlayers(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": records})
}

func userStats(c *gin.Context) {
	rec, err := store.UserStats(c.Param("externalId"))
	if err != nil {
		if err == storage.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// statusCodeFor 将业务错误映射为HTTP状态码
func statusCodeFor(err error) int {
	switch err {
	case services.ErrSessionNotFound, services.ErrPlayerNotFound:
		return http.StatusNotFound
	case services.ErrSessionFull, services.ErrGameInProgress, services.ErrGameNotStarted,
		services.ErrNotEnoughPlayers, services.ErrWrongPhase, services.ErrRoleMismatch,
		services.ErrAlreadyActed, services.ErrInvalidTarget, services.ErrAbilityConsumed,
		services.ErrPlayerDead, services.ErrNoLastWords:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
