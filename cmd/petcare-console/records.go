package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"petcare-console/internal/api"
	"petcare-console/internal/patrol"
	"petcare-console/internal/pets"
)

var (
	newCat api.NewCat
	newLog api.NewPatrolLog
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var catsCmd = &cobra.Command{
	Use:   "cats",
	Short: "Manage registered cats",
}

var catsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cats",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		cats := a.pets.List(cmd.Context(), u.ID)
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{
				strconv.FormatInt(c.ID, 10), c.Name, c.Breed, strconv.Itoa(c.Age),
				fmt.Sprintf("%.1f", c.Weight), c.HealthStatus, c.BehaviorStatus,
			})
		}
		out := cmd.OutOrStdout()
		printTable(out, "No cats registered", []string{"ID", "Name", "Breed", "Age", "Weight", "Health", "Behavior"}, rows)
		if attn := pets.NeedsAttention(cats); len(attn) > 0 {
			names := make([]string, 0, len(attn))
			for _, c := range attn {
				names = append(names, c.Name)
			}
			fmt.Fprintf(out, "Needs attention: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

var catsAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a cat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		c := newCat
		c.Name = args[0]
		c.UserID = u.ID
		if err := a.pets.Add(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", c.Name)
		return nil
	},
}

var catsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a cat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.pets.Delete(cmd.Context(), id)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Manage patrol logs",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patrol logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		logs := a.patrol.Logs(cmd.Context(), u.ID)
		rows := make([][]string, 0, len(logs))
		for _, l := range logs {
			rows = append(rows, []string{
				strconv.FormatInt(l.ID, 10), formatTime(l.StartTime), l.Mode, l.Status, l.Duration,
				strconv.Itoa(l.DetectionCount), fmt.Sprintf("%.1f", l.Distance), l.Details,
			})
		}
		printTable(cmd.OutOrStdout(), "No patrol logs", []string{"ID", "Start", "Mode", "Status", "Duration", "Detections", "Distance", "Details"}, rows)
		return nil
	},
}

var logsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a patrol run",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		l := newLog
		l.UserID = u.ID
		if err := a.patrol.AddLog(cmd.Context(), l); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Patrol log added")
		return nil
	},
}

var logsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a patrol log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.patrol.DeleteLog(cmd.Context(), id)
	},
}

var logsChartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Show this week's patrol minutes and detections per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		c := patrol.WeeklyChart(a.patrol.Logs(cmd.Context(), u.ID), nowFunc())
		rows := make([][]string, 0, len(c.Days)+1)
		for _, d := range c.Days {
			rows = append(rows, []string{d.Day.String(), fmt.Sprintf("%.1f", d.Minutes), strconv.Itoa(d.Detections)})
		}
		rows = append(rows, []string{"Total", fmt.Sprintf("%.1f", c.TotalMinutes), strconv.Itoa(c.TotalDetections)})
		printTable(cmd.OutOrStdout(), "", []string{"Day", "Minutes", "Detections"}, rows)
		return nil
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Manage recorded clips",
}

var videosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded clips",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		videos := a.patrol.Videos(cmd.Context(), u.ID)
		rows := make([][]string, 0, len(videos))
		for _, v := range videos {
			rows = append(rows, []string{strconv.FormatInt(v.ID, 10), formatTime(v.Timestamp), v.CatName, v.Behavior, v.Duration})
		}
		printTable(cmd.OutOrStdout(), "No videos", []string{"ID", "Recorded", "Cat", "Behavior", "Duration"}, rows)
		return nil
	},
}

var videosDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.patrol.DeleteVideo(cmd.Context(), id)
	},
}

func formatTime(t api.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func init() {
	catsAddCmd.Flags().StringVar(&newCat.Breed, "breed", "", "Breed")
	catsAddCmd.Flags().IntVar(&newCat.Age, "age", 0, "Age in years")
	catsAddCmd.Flags().Float64Var(&newCat.Weight, "weight", 0, "Weight in kg")
	catsAddCmd.Flags().StringVar(&newCat.Notes, "notes", "", "Free-form notes")
	catsCmd.AddCommand(catsListCmd, catsAddCmd, catsDeleteCmd)

	logsAddCmd.Flags().StringVar(&newLog.Mode, "mode", "auto", "Patrol mode")
	logsAddCmd.Flags().StringVar(&newLog.Status, "status", "completed", "Outcome")
	logsAddCmd.Flags().StringVar(&newLog.Duration, "duration", "", "Duration label, e.g. 10m")
	logsAddCmd.Flags().IntVar(&newLog.DurationMinutes, "minutes", 0, "Duration in minutes, used to backdate the start")
	logsAddCmd.Flags().Float64Var(&newLog.Distance, "distance", 0, "Distance covered")
	logsAddCmd.Flags().IntVar(&newLog.DetectionCount, "detections", 0, "Cat detections")
	logsAddCmd.Flags().StringVar(&newLog.Details, "details", "", "Details")
	logsCmd.AddCommand(logsListCmd, logsAddCmd, logsDeleteCmd, logsChartCmd)

	videosCmd.AddCommand(videosListCmd, videosDeleteCmd)
}
