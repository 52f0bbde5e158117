package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linear-axis/drive"
)

var (
	version      = flag.Bool("version", false, "Print version info")
	help         = flag.Bool("help", false, "Print help")
	logLevel     = flag.Int("log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	redisServer  = flag.String("redis_server", "127.0.0.1", "Redis server address")
	redisPort    = flag.Int("redis_port", 6379, "Redis server port")
	canDevice    = flag.String("can_device", "can0", "CAN device name")
	nodeID       = flag.Int("node_id", 10, "CANopen node id of the drive")
	dictionary   = flag.String("dictionary", "BG45CI.eds", "Device dictionary (EDS) file")
	profile      = flag.String("profile", "", "Drive profile YAML file (built-in profile if empty)")
	mode         = flag.String("mode", "sequence", "Run mode (sequence or jog)")
	targets      = flag.String("targets", "-100000,0", "Comma separated absolute targets for sequence mode")
	dwell        = flag.Duration("dwell", 2*time.Second, "Pause between sequence moves")
	interval     = flag.Duration("interval", drive.DefaultPollInterval, "Position sampling interval")
	timeout      = flag.Duration("timeout", 30*time.Second, "Move timeout (0 to wait forever)")
	tolerance    = flag.Uint("tolerance", uint(drive.DefaultTolerance), "Arrival tolerance in encoder counts")
	jogIncrement = flag.Int64("jog_increment", drive.DefaultJogIncrement, "Relative move per jog command in encoder counts")
	simulate     = flag.Bool("simulate", false, "Use a simulated drive instead of the CAN bus")
)

const (
	ProjectName    = "linear-axis-service"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	if *logLevel < 0 || *logLevel > 4 {
		log.Fatalf("invalid log level %d", *logLevel)
	}
	if *nodeID < 1 || *nodeID > 127 {
		log.Fatalf("invalid node id %d", *nodeID)
	}

	runMode, err := ParseRunMode(*mode)
	if err != nil {
		log.Fatal(err)
	}
	targetList, err := ParseTargets(*targets)
	if err != nil {
		log.Fatal(err)
	}

	opts := &Options{
		LogLevel:        LogLevel(*logLevel),
		RedisServerAddr: *redisServer,
		RedisServerPort: uint16(*redisPort),
		CANDevice:       *canDevice,
		NodeID:          uint8(*nodeID),
		Dictionary:      *dictionary,
		ProfilePath:     *profile,
		Mode:            runMode,
		Targets:         targetList,
		Dwell:           *dwell,
		PollInterval:    *interval,
		MoveTimeout:     *timeout,
		Tolerance:       uint32(*tolerance),
		JogIncrement:    *jogIncrement,
		Simulate:        *simulate,
	}

	app, err := NewAxisApp(opts)
	if err != nil {
		log.Fatalf("failed to create axis app: %v", err)
	}

	// Handle SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.Run(ctx)
	stop()
	app.Destroy()

	if err != nil {
		log.Printf("%s stopped: %v", ProjectName, err)
		os.Exit(1)
	}
}
