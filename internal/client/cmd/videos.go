package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/client/api"
	"github.com/bixapp/bix/internal/models"
)

func newFeedCmd(e *env) *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Page through the video feed",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, false); err != nil {
				return err
			}

			if offset < 0 {
				offset = 0
			}
			page, err := e.api.Feed(ctx, offset, limit)
			if err != nil {
				return fmt.Errorf("load feed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Videos) == 0 {
				fmt.Fprintln(out, "No videos here. Start over: bixctl feed")
				return nil
			}
			printVideos(out, page.Videos)

			// Swiping past the last video loops back to the first.
			if next := catalog.NextIndex(offset+len(page.Videos)-1, page.Total); next > 0 {
				fmt.Fprintf(out, "\nMore: bixctl feed --offset %d\n", next)
			} else {
				fmt.Fprintln(out, "\nEnd of feed. Start over: bixctl feed")
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Position in the feed")
	cmd.Flags().IntVar(&limit, "limit", 10, "Videos per page")
	return cmd
}

func newSearchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search captions, creators and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, false); err != nil {
				return err
			}

			videos, err := e.api.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No videos found")
				return nil
			}
			printVideos(cmd.OutOrStdout(), videos)
			return nil
		}),
	}
}

func newDiscoverCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [query]",
		Short: "Browse the discovery sections",
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, false); err != nil {
				return err
			}

			categories, err := e.api.Discover(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}

			out := cmd.OutOrStdout()
			for i, c := range categories {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "== %s ==\n", c.Label)
				if len(c.Videos) == 0 {
					fmt.Fprintln(out, "(empty)")
					continue
				}
				printVideos(out, c.Videos)
			}
			return nil
		}),
	}
}

func newProfileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <handle>",
		Short: "Show a creator profile",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, false); err != nil {
				return err
			}

			profile, err := e.api.Profile(ctx, strings.TrimPrefix(args[0], "@"))
			if err != nil {
				return fmt.Errorf("load profile: %w", err)
			}

			out := cmd.OutOrStdout()
			name := profile.DisplayName
			if profile.Verified {
				name += " ✓"
			}
			fmt.Fprintf(out, "%s (@%s)\n", name, profile.Username)
			if profile.Bio != "" {
				fmt.Fprintln(out, profile.Bio)
			}
			fmt.Fprintf(out, "%d followers, %d following\n\n", profile.Followers, profile.Following)
			printVideos(out, profile.Videos)
			return nil
		}),
	}
}

func newUploadCmd(e *env) *cobra.Command {
	var caption, tags, sound string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Publish a video",
		Args:  cobra.ExactArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, true); err != nil {
				return err
			}
			if strings.TrimSpace(caption) == "" {
				return fmt.Errorf("a caption is required (--caption)")
			}

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("upload: %s is a directory", path)
			}

			progress := cmd.ErrOrStderr()
			last := -1
			record, err := e.api.Upload(ctx, api.UploadRequest{
				FileName: filepath.Base(path),
				Size:     info.Size(),
				Open: func() (io.ReadCloser, error) {
					return os.Open(path)
				},
				Caption: caption,
				Tags:    tags,
				Sound:   sound,
				Progress: func(f float64) {
					pct := int(f * 100)
					if pct != last {
						last = pct
						fmt.Fprintf(progress, "\rUploading... %3d%%", pct)
					}
				},
			})
			if last >= 0 {
				fmt.Fprintln(progress)
			}
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n%s\n", record.ID, record.VideoURL)
			return nil
		}),
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Video caption")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().StringVar(&sound, "sound", "", "Sound title")
	return cmd
}

func printVideos(w io.Writer, videos []models.VideoRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, v := range videos {
		fmt.Fprintf(tw, "%s\t@%s\t%s\t%s\t♥ %d\n", v.ID, v.Username, v.Caption, formatTags(v.Tags), v.Likes)
	}
	_ = tw.Flush()
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}
