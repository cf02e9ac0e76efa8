package handler

import (
	"wagerhub/internal/config"
	"wagerhub/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 初始化路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(LoggerMiddleware())
	r.Use(RecoveryMiddleware())

	h := NewHandler(db, rdb, cfg)
	userRepo := repository.NewUserRepository(db)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware())
	{
		wallet := v1.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalances)
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
			wallet.GET("/transactions", h.ListTransactions)
		}

		match := v1.Group("/match")
		{
			match.POST("/create", h.CreateMatch)
			match.POST("/join", h.JoinMatch)
			match.POST("/propose", h.ProposeAmount)
			match.POST("/proposal/accept", h.AcceptProposal)
			match.POST("/proposal/reject", h.RejectProposal)
			match.POST("/cancel", h.CancelMatch)
			match.POST("/report", h.ReportWinner)
			match.POST("/dispute", h.RaiseDispute)
			match.GET("/detail", h.GetMatch)
			match.GET("/lobby", h.ListWaitingMatches)
			match.GET("/list", h.ListMyMatches)
		}

		bet := v1.Group("/bet")
		{
			bet.POST("/place", h.PlaceBet)
			bet.GET("/match", h.ListMatchBets)
			bet.GET("/list", h.ListMyBets)
		}

		admin := v1.Group("/admin")
		admin.Use(AdminMiddleware(userRepo))
		{
			admin.POST("/match/approve", h.ApproveMatch)
			admin.POST("/match/reject", h.RejectMatch)
			admin.POST("/match/dispute/resolve", h.ResolveDispute)
		}
	}

	return r
}
