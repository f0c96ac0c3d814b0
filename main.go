package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/report"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/gbl08ma/keybox"
	"github.com/gbl08ma/sqalx"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rickb777/date"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	rdb           *sqlx.DB
	rootSqalxNode sqalx.Node
	secrets       *keybox.Keybox
	mainLog       = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	webLog        = log.New(os.Stdout, "web", log.Ldate|log.Ltime)
	apiLog        = log.New(os.Stdout, "api", log.Ldate|log.Ltime)
	accountsLog   = log.New(os.Stdout, "accounts", log.Ldate|log.Ltime)
	startTime     = time.Now().UTC()

	planner         *transit.Planner
	onboardingStore *gate.CachedStore

	// GitCommit is provided by govvv at compile-time
	GitCommit = "???"
	// BuildDate is provided by govvv at compile-time
	BuildDate = "???"
)

func main() {
	// a missing .env just means everything comes from the environment
	_ = godotenv.Load()
	Execute()
}

func secretsPath() string {
	if path := os.Getenv("CAMPUSPLANNER_SECRETS"); path != "" {
		return path
	}
	return SecretsPath
}

func listenAddress() string {
	if addr := os.Getenv("CAMPUSPLANNER_LISTEN"); addr != "" {
		return addr
	}
	return DefaultListenAddress
}

func openSecrets() (err error) {
	mainLog.Println("Opening keybox...")
	secrets, err = keybox.Open(secretsPath())
	if err != nil {
		return err
	}
	mainLog.Println("Keybox opened")
	return nil
}

func openDatabase() error {
	mainLog.Println("Opening database...")
	driver, present := secrets.Get("databaseDriver")
	if !present {
		driver = "postgres"
	}
	databaseURI, present := secrets.Get("databaseURI")
	if !present {
		return errors.New("database connection string not present in keybox")
	}

	var err error
	rdb, err = sqlx.Open(driver, databaseURI)
	if err != nil {
		return err
	}
	if err = rdb.Ping(); err != nil {
		rdb.Close()
		return err
	}
	if driver == "sqlite" {
		// SQLite allows a single writer
		rdb.SetMaxOpenConns(1)
	} else {
		rdb.SetMaxOpenConns(MaxDBconnectionPoolSize)
	}
	dataobjects.UsePlaceholderFormat(dataobjects.PlaceholderFormatForDriver(driver))

	rootSqalxNode, err = sqalx.New(rdb)
	if err != nil {
		rdb.Close()
		return err
	}
	mainLog.Println("Database opened")
	return nil
}

func setUpReporting() error {
	dsn, _ := secrets.Get("sentryDSN")
	err := report.Setup(report.Config{
		DSN:         dsn,
		Environment: Environment,
		Release:     GitCommit,
	})
	if err != nil {
		return err
	}
	if report.Enabled() {
		mainLog.Println("Reporting errors to Sentry")
	}
	return nil
}

// loadPlanner builds the transit planner from the transit box of the keybox.
// Schedule and commute configuration errors are fatal.
func loadPlanner() (*transit.Planner, error) {
	box, present := secrets.GetBox("transit")
	if !present {
		return nil, errors.New("transit keybox not present in keybox")
	}
	get := func(key string) string {
		value, _ := box.Get(key)
		return value
	}

	scheduleFile := get("scheduleFile")
	if scheduleFile == "" {
		return nil, errors.New("transit schedule file not present in keybox")
	}
	table, err := transit.LoadScheduleFile(scheduleFile)
	if err != nil {
		return nil, err
	}

	commute := transit.Commute{
		TrainLine: get("trainLine"),
		BusLine:   get("busLine"),
		Hub:       get("hub"),
		BusStop:   get("busStop"),
		School:    get("school"),
		TrainName: get("trainName"),
		BusName:   get("busName"),
		WalkName:  get("walkName"),
	}
	if walk := get("walkMinutes"); walk != "" {
		commute.WalkMinutes, err = strconv.Atoi(walk)
		if err != nil {
			return nil, fmt.Errorf("transit walkMinutes: %s", err)
		}
	}
	if err := commute.Validate(table); err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(get("timezone"))
	if err != nil {
		return nil, err
	}
	holidays, err := parseHolidays(get("holidays"))
	if err != nil {
		return nil, err
	}

	mainLog.Printf("Transit schedule loaded: %d routes on %d lines\n", table.RouteCount(), len(table.Lines()))
	return &transit.Planner{
		Table:    table,
		Commute:  commute,
		Location: location,
		Holidays: holidays,
		Status:   transit.NominalStatus{},
	}, nil
}

// parseHolidays parses a comma separated list of ISO dates
func parseHolidays(s string) ([]date.Date, error) {
	holidays := []date.Date{}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		d, err := date.ParseISO(field)
		if err != nil {
			return nil, fmt.Errorf("transit holidays: %s", err)
		}
		holidays = append(holidays, d)
	}
	return holidays, nil
}

func serve(cmd *cobra.Command, args []string) error {
	mainLog.Println("Server starting")
	if err := openSecrets(); err != nil {
		return err
	}
	if err := setUpReporting(); err != nil {
		return err
	}
	defer report.Flush()

	if err := openDatabase(); err != nil {
		return err
	}
	defer rdb.Close()
	if err := dataobjects.EnsureSchema(rdb); err != nil {
		return err
	}

	onboardingStore = gate.NewCachedStore(&dataobjects.OnboardingRecords{Node: rootSqalxNode}, 0)

	var err error
	planner, err = loadPlanner()
	if err != nil {
		return err
	}

	SetUpScrapers()
	defer TearDownScrapers()

	SetUpDirections()

	go StatsSender()

	return WebServer(listenAddress())
}
