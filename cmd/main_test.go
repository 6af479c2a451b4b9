package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/topple/internal/adapters/http/api"
	service "github.com/okian/topple/internal/app"
	"github.com/okian/topple/internal/config"
	"github.com/okian/topple/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When loading configuration from the environment", func() {
			t.Setenv("TOPPLE_ADDR", ":8080")
			t.Setenv("TOPPLE_QUEUE_SIZE", "1000")
			t.Setenv("TOPPLE_WORKER_COUNT", "4")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When creating the service", func() {
			convey.Convey("Then it should be creatable with default options", func() {
				svc := service.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And with custom options", func() {
				svc := service.New(
					service.WithBoardSize(25),
					service.WithWorkerCount(8),
					service.WithRateLimit(time.Minute, 5),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When wiring HTTP routes", func() {
			svc := service.New()
			apiServer := api.NewServer(svc, svc, 50)
			mux := http.NewServeMux()
			apiServer.Register(context.Background(), mux)

			convey.Convey("Then the server registers without panicking", func() {
				convey.So(apiServer, convey.ShouldNotBeNil)
			})
		})
	})
}
