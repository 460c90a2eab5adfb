package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/jobintel/internal/batchmatch"
	"github.com/spigell/jobintel/internal/filtering"
	"github.com/spigell/jobintel/internal/matching"
	"github.com/spigell/jobintel/internal/model"
	"github.com/spigell/jobintel/internal/profile"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank stored jobs for profile files or a resume",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringSliceP("profile", "p", nil, "profile file (yaml or json); repeat to match several users, named after their files")
	matchCmd.Flags().StringP("resume", "r", "", "plain text resume, turned into a profile by gemini")
	matchCmd.Flags().StringP("user", "u", "", "user id; when set the matches are saved")
	matchCmd.Flags().Int("min-score", 0, "minimum total score (default from matching.minimum-score)")
	matchCmd.Flags().IntP("limit", "n", 20, "how many matches to print, 0 prints all")
	matchCmd.Flags().BoolP("explain", "e", false, "print the score breakdown of every match")
	matchCmd.MarkFlagsMutuallyExclusive("profile", "resume")
	matchCmd.MarkFlagsOneRequired("profile", "resume")
}

func match(cmd *cobra.Command) {
	ctx := context.Background()

	svc := setup(ctx)
	defer svc.Close(ctx)
	logger := svc.logger

	userID, _ := cmd.Flags().GetString("user")
	minScore, _ := cmd.Flags().GetInt("min-score")
	limit, _ := cmd.Flags().GetInt("limit")
	explain, _ := cmd.Flags().GetBool("explain")

	service, err := svc.Matcher(ctx, minScore)
	if err != nil {
		logger.Fatal("building the matcher", zap.Error(err))
	}

	if paths, _ := cmd.Flags().GetStringSlice("profile"); len(paths) > 1 {
		if userID != "" {
			logger.Fatal("--user works with a single profile, several profiles use their file names")
		}

		reqs, err := profileRequests(paths)
		if err != nil {
			logger.Fatal("loading the profiles", zap.Error(err))
		}

		reports, err := service.MatchUsers(ctx, reqs)
		if err != nil {
			logger.Fatal("matching failed", zap.Error(err))
		}

		for _, report := range reports {
			fmt.Printf("== %s: %d of %d jobs matched, %d saved\n",
				report.UserID, len(report.Matches), report.Considered, report.Saved)
			printReport(report, limit, explain)
		}
		return
	}

	p, err := loadProfile(ctx, cmd, svc)
	if err != nil {
		logger.Fatal("loading the profile", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(p, "", "  ")
	logger.Debug(fmt.Sprintf("matching with profile: \n %s", pretty))

	report, err := service.MatchUser(ctx, userID, *p)
	if err != nil {
		logger.Fatal("matching failed", zap.Error(err))
	}

	for _, step := range report.Steps {
		logger.Debug("filter step", zap.String("name", step.Name),
			zap.Int("dropped", step.Dropped), zap.Int("left", step.Left))
	}

	logger.Info("matching finished",
		zap.Int("considered", report.Considered),
		zap.Int("matched", len(report.Matches)),
		zap.Int("saved", report.Saved),
	)

	printReport(report, limit, explain)
}

// profileRequests loads every profile file. The user id is the file name
// without its extension, so alice.yaml matches and saves as user alice.
func profileRequests(paths []string) ([]batchmatch.UserProfileRequest, error) {
	reqs := make([]batchmatch.UserProfileRequest, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		userID := strings.TrimSuffix(base, filepath.Ext(base))
		if prev, ok := seen[userID]; ok {
			return nil, fmt.Errorf("%s and %s map to the same user %q", prev, path, userID)
		}
		seen[userID] = path

		p, err := profile.Load(path)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, batchmatch.UserProfileRequest{UserID: userID, Profile: *p})
	}
	return reqs, nil
}

func loadProfile(ctx context.Context, cmd *cobra.Command, svc *services) (*model.UserProfile, error) {
	if paths, _ := cmd.Flags().GetStringSlice("profile"); len(paths) > 0 {
		return profile.Load(paths[0])
	}

	path, _ := cmd.Flags().GetString("resume")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}

	extractor, err := svc.Extractor(ctx)
	if err != nil {
		return nil, err
	}

	p, err := extractor.ExtractProfile(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("extract profile from %s: %w", path, err)
	}
	if err := profile.Normalize(p); err != nil {
		return nil, err
	}
	return p, nil
}

func printReport(report *batchmatch.Report, limit int, explain bool) {
	if explain {
		printFilters(report.Filters)
	}
	printMatches(report.Matches, limit, explain)
}

func printFilters(statuses []filtering.Status) {
	for _, st := range statuses {
		state := "on"
		if !st.Enabled {
			state = "off"
		}
		line := fmt.Sprintf("filter %-18s %s", st.Name, state)
		if st.Reason != "" {
			line += " (" + st.Reason + ")"
		}

		keys := make([]string, 0, len(st.Details))
		for k := range st.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%s", k, st.Details[k])
		}
		fmt.Println(line)
	}
}

func printMatches(ranked []matching.Ranked, limit int, explain bool) {
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for i, r := range ranked {
		fmt.Printf("%3d. [%3d %-9s] %s / %s / %s\n",
			i+1,
			r.Score.TotalScore,
			matching.ClassifyMatch(r.Score.TotalScore),
			r.Job.Title,
			r.Job.CompanyName,
			r.Job.Location,
		)
		if r.Job.ApplyURL != "" {
			fmt.Printf("     %s\n", r.Job.ApplyURL)
		}
		if !explain {
			continue
		}
		for _, line := range r.Score.Breakdown {
			fmt.Printf("       %s\n", line)
		}
		fmt.Printf("       reasons: %s\n", strings.Join(r.Score.MatchReasons, "; "))
		if len(r.Score.SkillGaps) > 0 {
			fmt.Printf("       skill gaps: %s\n", strings.Join(r.Score.SkillGaps, ", "))
		}
	}
}
