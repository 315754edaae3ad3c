// Command spriteoned is the Sprite One coprocessor firmware daemon: it
// opens the serial link to the host, wires up the command queue
// between the I/O core and the AI core, and runs until signaled to
// stop. Grounded on the teacher's cmd/bluetooth-service/main.go
// (flag-based config, sequential subsystem startup, signal-driven
// shutdown).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sprite-one/coprocessor/pkg/arena"
	"github.com/sprite-one/coprocessor/pkg/dispatcher"
	"github.com/sprite-one/coprocessor/pkg/graphics"
	"github.com/sprite-one/coprocessor/pkg/identity"
	"github.com/sprite-one/coprocessor/pkg/industrial"
	"github.com/sprite-one/coprocessor/pkg/model"
	"github.com/sprite-one/coprocessor/pkg/queue"
	"github.com/sprite-one/coprocessor/pkg/sprite"
	"github.com/sprite-one/coprocessor/pkg/store"
	"github.com/sprite-one/coprocessor/pkg/telemetry"
	"github.com/sprite-one/coprocessor/pkg/transport"
	"github.com/sprite-one/coprocessor/pkg/worker"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyS1", "serial device path")
	baudRate     = flag.Int("baud", 115200, "serial baud rate")
	modelDir     = flag.String("model-dir", "/var/lib/sprite-one/models", "model file store directory")
	arenaBytes   = flag.Int("arena-bytes", 2<<20, "model arena capacity in bytes")
	queueDepth   = flag.Int("queue-depth", 32, "per-ring command/response queue capacity")

	redisAddr = flag.String("redis-addr", "", "telemetry redis address (empty disables telemetry)")
	redisPass = flag.String("redis-pass", "", "telemetry redis password")
	redisDB   = flag.Int("redis-db", 0, "telemetry redis database number")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("starting Sprite One coprocessor firmware")
	log.Printf("serial device: %s, baud: %d", *serialDevice, *baudRate)
	log.Printf("model store: %s, arena: %d bytes", *modelDir, *arenaBytes)

	var tel *telemetry.Publisher
	if *redisAddr != "" {
		var err error
		tel, err = telemetry.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Printf("telemetry disabled: %v", err)
			tel = nil
		} else {
			defer tel.Close()
			log.Printf("telemetry connected to %s", *redisAddr)
		}
	}

	id, err := identity.Generate()
	if err != nil {
		log.Fatalf("failed to establish device identity: %v", err)
	}
	log.Printf("device identity: %s", id)

	st, err := store.New(*modelDir)
	if err != nil {
		log.Fatalf("failed to open model store: %v", err)
	}

	a := arena.New(*arenaBytes)
	m := model.New(a)
	fb := graphics.New()
	sprites := sprite.New()
	ind := industrial.New()
	q := queue.New(*queueDepth)

	stream, err := transport.OpenSerial(transport.SerialConfig{Device: *serialDevice, Baud: *baudRate})
	if err != nil {
		log.Fatalf("failed to open serial link: %v", err)
	}
	defer stream.Close()
	log.Printf("serial link open")

	wstate := &worker.State{
		Model:      m,
		FB:         fb,
		Sprites:    sprites,
		Industrial: ind,
		Identity:   id,
		Store:      st,
		Telemetry:  tel,
	}
	w := worker.New(q, wstate)
	w.Start()
	defer w.Stop()
	log.Printf("AI core worker started")

	disp, err := dispatcher.New(stream, q, st, m, ind, id, tel)
	if err != nil {
		log.Fatalf("failed to build command dispatcher: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- disp.Run() }()
	log.Printf("I/O core dispatcher running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Printf("shutdown signal received")
	case err := <-runErr:
		if err != nil {
			log.Printf("dispatcher exited: %v", err)
		}
	}

	log.Printf("shutting down")
}
