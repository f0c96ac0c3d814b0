package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	routeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "campusplanner",
	Short: "Timetables, deadlines and the commute to campus",
	Long: `campusplanner serves the Campus Planner website and API: class timetables,
assignment and exam deadlines, and train and bus connections to and from campus.`,
	SilenceUsage: true,
	RunE:         serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the website and API server (default)",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var checkScheduleCmd = &cobra.Command{
	Use:   "check-schedule <file>",
	Short: "Validate a transit schedule file and print a summary of it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkSchedule(cmd.OutOrStdout(), args[0])
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables and indexes that do not exist yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openSecrets(); err != nil {
			return err
		}
		if err := openDatabase(); err != nil {
			return err
		}
		defer rdb.Close()
		if err := dataobjects.EnsureSchema(rdb); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Schema is up to date"))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "campusplanner %s (built %s)\n", GitCommit, BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, checkScheduleCmd, migrateCmd, versionCmd)
}

// Execute runs the command named in the arguments, serve by default
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func checkSchedule(w io.Writer, path string) error {
	table, err := transit.LoadScheduleFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(w, errStyle.Render("Could not read schedule"), err.Error())
		} else {
			fmt.Fprintln(w, errStyle.Render("Invalid schedule"), err.Error())
		}
		return err
	}
	printSchedule(w, table)
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("OK: %d routes on %d lines", table.RouteCount(), len(table.Lines()))))
	return nil
}

func printSchedule(w io.Writer, table *transit.ScheduleTable) {
	for _, line := range table.Lines() {
		fmt.Fprintln(w, titleStyle.Render(line))
		for _, routeID := range table.Routes(line) {
			route, _ := table.Route(line, routeID)
			fmt.Fprintf(w, "  %s %s\n", routeStyle.Render(routeID), dimStyle.Render(fmt.Sprintf("(%d min)", route.DurationMinutes)))
			fmt.Fprintf(w, "    weekday: %s\n", departureSummary(route.Weekday))
			fmt.Fprintf(w, "    weekend: %s\n", departureSummary(route.Weekend))
		}
	}
}

func departureSummary(times []transit.ClockTime) string {
	switch len(times) {
	case 0:
		return dimStyle.Render("no service")
	case 1:
		return "1 departure at " + times[0].String()
	}
	parts := []string{
		fmt.Sprintf("%d departures", len(times)),
		fmt.Sprintf("first %s", times[0]),
		fmt.Sprintf("last %s", times[len(times)-1]),
	}
	return strings.Join(parts, ", ")
}
