package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/townsquare/internal/api"
	"github.com/wfunc/townsquare/internal/config"
	"github.com/wfunc/townsquare/internal/database"
	"github.com/wfunc/townsquare/internal/engine"
	"github.com/wfunc/townsquare/internal/errors"
	"github.com/wfunc/townsquare/internal/game"
	"github.com/wfunc/townsquare/internal/logger"
	"github.com/wfunc/townsquare/internal/phase"
	"github.com/wfunc/townsquare/internal/repository"
	"github.com/wfunc/townsquare/internal/rules"
	ws "github.com/wfunc/townsquare/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db           *gorm.DB
	repo         *repository.StateRepository
	outbox       *phase.Outbox
	hub          *ws.Hub
	orchestrator *engine.Orchestrator
	httpServer   *http.Server

	// 关闭控制
	shutdownCh chan struct{}
	finishedCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.GetLogger().Error("服务器启动失败", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.GetLogger().Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.GetLogger().Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		finishedCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动游戏服务器...",
		zap.String("version", Version),
		zap.String("store", s.cfg.Store.Driver),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	s.startServices()

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
	)
	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	store, err := s.initStore()
	if err != nil {
		return err
	}

	repo, err := repository.Open(s.ctx, store, logger.WithModule("repository"))
	if err != nil {
		store.Close()
		return err
	}
	s.repo = repo

	if s.cfg.Game.Reset {
		s.logger.Warn("按配置重置游戏文档")
		if err := repo.Reset(s.ctx); err != nil {
			return err
		}
	}

	if err := s.seedPlayers(); err != nil {
		return err
	}

	inbox := phase.NewInbox(s.cfg.Game.InboxSize, logger.WithModule("inbox"))
	s.outbox = phase.NewOutbox(logger.WithModule("outbox"))
	s.hub = ws.NewHub(logger.WithModule("websocket"))
	s.outbox.OnSend(s.hub.PushPrompt)

	dispatcher := phase.NewDispatcher(repo, inbox, s.outbox, logger.WithModule("dispatcher"))
	s.orchestrator = engine.NewOrchestrator(repo, dispatcher, rules.NewStandard(), engine.Options{
		MaxPhases:    s.cfg.Game.MaxPhases,
		PhaseTimeout: s.cfg.Game.PhaseTimeout,
		StaleAfter:   s.cfg.Game.PhaseTimeout,
	}, logger.WithModule("engine"))
	s.orchestrator.OnStateChange(func(name string, from, to engine.PhaseState) {
		logger.LogPhaseEvent("state_change", name,
			zap.String("from", string(from)),
			zap.String("to", string(to)))
	})

	if s.cfg.Server.Enabled {
		if s.cfg.Server.Mode != "" {
			gin.SetMode(s.cfg.Server.Mode)
		}
		router := api.NewRouter(api.Deps{
			Repo:   repo,
			Intake: phase.NewIntake(repo, inbox, logger.WithModule("intake")),
			Outbox: s.outbox,
			Hub:    s.hub,
			DB:     s.db,
			Store:  store,
		}, logger.WithModule("api"))
		s.httpServer = router.Server(fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port))
		s.httpServer.ReadTimeout = s.cfg.Server.ReadTimeout
		s.httpServer.WriteTimeout = s.cfg.Server.WriteTimeout
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initStore 按配置创建文档存储
func (s *Server) initStore() (repository.DocumentStore, error) {
	switch s.cfg.Store.Driver {
	case "memory":
		s.logger.Warn("使用内存存储，进程退出后游戏状态将丢失")
		return repository.NewMemoryStore(), nil

	case "database":
		s.logger.Info("初始化数据库...")
		if err := database.Init(&s.cfg.Database); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
		}
		s.db = database.DB

		s.logger.Info("使用数据库存储", zap.String("game_id", s.cfg.Game.ID))
		return repository.NewDatabaseStore(s.db, s.cfg.Game.ID, logger.WithModule("store")), nil

	default:
		return repository.NewFileStore(s.cfg.Store.Path, repository.FileStoreOptions{
			Lock: s.cfg.Store.Lock,
		}, logger.WithModule("store"))
	}
}

// seedPlayers 文档中没有玩家时写入配置中的玩家
func (s *Server) seedPlayers() error {
	if len(s.repo.Players()) > 0 || len(s.cfg.Game.Players) == 0 {
		return nil
	}

	players := make([]game.Player, 0, len(s.cfg.Game.Players))
	for i, pc := range s.cfg.Game.Players {
		p := game.NewPlayer(i+1, pc.Name, pc.Contact)
		if pc.RoleClass != "" {
			class := game.RoleClass(pc.RoleClass)
			if !class.Valid() {
				return errors.Newf(errors.ErrConfigValidate, "玩家 %d 的角色类别无效: %s", i+1, pc.RoleClass)
			}
			p.RoleClass = class
		}
		if pc.RoleName != "" {
			p.RoleName = pc.RoleName
		}
		players = append(players, p)
	}

	if err := s.repo.SetPlayers(s.ctx, players); err != nil {
		return err
	}
	s.logger.Info("已写入初始玩家", zap.Int("players", len(players)))
	return nil
}

// startServices 启动服务
func (s *Server) startServices() {
	s.logger.Info("启动服务...")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	if s.httpServer != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("HTTP服务监听", zap.String("addr", s.httpServer.Addr))
			if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTP服务异常退出", zap.Error(err))
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.finishedCh)
		s.runGame()
	}()

	s.logger.Info("所有服务启动完成")
}

// runGame 运行阶段编排
func (s *Server) runGame() {
	outcome, err := s.orchestrator.Run(s.ctx)
	switch {
	case errors.Is(err, errors.ErrCanceled):
		s.logger.Info("阶段编排已停止", zap.String("phase", s.repo.CurrentPhase()))
	case err != nil:
		s.logger.Error("阶段编排失败",
			zap.String("phase", s.repo.CurrentPhase()),
			zap.Bool("critical", errors.IsCritical(err)),
			zap.Error(err))
	case outcome.Ended:
		s.logger.Info("游戏结束",
			zap.String("winner", outcome.Winner),
			zap.String("reason", outcome.Reason),
			zap.String("last_phase", outcome.LastPhase))
	default:
		s.logger.Info("阶段编排完成",
			zap.String("last_phase", outcome.LastPhase),
			zap.Int("phases_run", outcome.PhasesRun))
	}
}

// WaitForShutdown 等待关闭信号
//
// HTTP 服务关闭时，游戏结束后进程也随之退出；否则保持运行以便查询历史。
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	var finished <-chan struct{}
	if s.httpServer == nil {
		finished = s.finishedCh
	}

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-finished:
		s.logger.Info("游戏编排结束，准备退出")
	}

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
		}
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() {
	s.logger.Info("关闭组件...")

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Error("关闭存储失败", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("关闭数据库失败", zap.Error(err))
		}
	}

	s.logger.Info("所有组件已关闭")
}

// reloadConfig 重新加载配置
//
// 只有阶段等待时长和日志级别支持热更新，其余配置需要重启。
func (s *Server) reloadConfig(newCfg *config.Config) {
	if newCfg.Game.PhaseTimeout != s.orchestrator.PhaseTimeout() {
		s.orchestrator.SetPhaseTimeout(newCfg.Game.PhaseTimeout)
	}
	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}
	s.cfg.Game.PhaseTimeout = newCfg.Game.PhaseTimeout
	s.cfg.Log.Level = newCfg.Log.Level

	s.logger.Info("配置重新加载完成")
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Townsquare 游戏服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Townsquare 游戏服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  townsquare [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  TOWNSQUARE_STORE_DRIVER      存储驱动 (file/database/memory)")
	fmt.Println("  TOWNSQUARE_GAME_PHASE_TIMEOUT 每个阶段的等待时长")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  townsquare -config=/path/to/config.yaml")
	fmt.Println("  townsquare -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                    Townsquare 游戏服务器")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("版本: %s | 存储: %s | PID: %d\n", Version, cfg.Store.Driver, os.Getpid())
	fmt.Printf("配置文件: %s\n", config.ConfigFile())
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
