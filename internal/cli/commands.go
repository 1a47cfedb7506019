package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/motionphoto/internal/format"
	"github.com/maauso/motionphoto/internal/motion"
)

func (a *app) newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect PATH...",
		Short: "Report whether photos carry an embedded video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			table := newTable(cmd.OutOrStdout(), "PATH", "MOTION", "ERROR")
			for _, path := range args {
				ok, err := a.deps.Service.Detect(cmd.Context(), path)
				if err != nil {
					failed = true
					table.Append([]string{path, "", err.Error()})
					continue
				}
				table.Append([]string{path, yesNo(ok), ""})
			}
			table.Render()

			if failed {
				return ErrFilesFailed
			}
			return nil
		},
	}
}

func (a *app) newInfoCmd() *cobra.Command {
	var withExif bool

	cmd := &cobra.Command{
		Use:   "info PATH...",
		Short: "Show the image and video segments of photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false
			for i, path := range args {
				if i > 0 {
					fmt.Fprintln(out)
				}
				res, err := a.deps.Service.Info(cmd.Context(), path, withExif)
				if err != nil {
					failed = true
					fmt.Fprintf(out, "%s: %v\n", path, err)
					continue
				}

				info := res.Info
				data := [][]string{
					{"Path:", info.Path},
					{"Has video:", yesNo(info.HasVideo)},
					{"Total size:", info.ReadableTotalSize()},
					{"Image size:", info.ReadableImageSize()},
				}
				if info.HasVideo {
					data = append(data,
						[]string{"Video size:", info.ReadableVideoSize()},
						[]string{"Video offset:", strconv.FormatInt(info.VideoStartOffset, 10)},
					)
				}
				data = append(data, []string{"Search depth:", format.HumanBytes(info.SearchDepth)})
				if s := res.Still; s != nil {
					data = append(data, stillRows(s)...)
				}

				table := newTable(out)
				table.SetTablePadding(" ")
				table.AppendBulk(data)
				table.Render()
			}

			if failed {
				return ErrFilesFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withExif, "exif", false, "include EXIF details of the still image")
	return cmd
}

func stillRows(s *motion.StillMetadata) [][]string {
	var rows [][]string
	if s.Make != "" {
		rows = append(rows, []string{"Make:", s.Make})
	}
	if s.Model != "" {
		rows = append(rows, []string{"Model:", s.Model})
	}
	if s.DateTaken != nil {
		rows = append(rows, []string{"Taken:", s.DateTaken.Format(time.DateTime)})
	}
	if s.Width > 0 && s.Height > 0 {
		rows = append(rows, []string{"Dimensions:", fmt.Sprintf("%dx%d", s.Width, s.Height)})
	}
	if s.ISO > 0 {
		rows = append(rows, []string{"ISO:", strconv.Itoa(s.ISO)})
	}
	return rows
}

func (a *app) newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract PATH...",
		Short: "Write the embedded video of each photo next to it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			table := newTable(cmd.OutOrStdout(), "PATH", "OUTPUT", "OFFSET", "SIZE", "ERROR")
			for _, path := range args {
				res, err := a.deps.Engine.Extract(path)
				switch {
				case err != nil:
					failed = true
					table.Append([]string{path, "", "", "", err.Error()})
				case res == nil:
					table.Append([]string{path, "no video", "", "", ""})
				default:
					table.Append([]string{
						path,
						res.OutputPath,
						strconv.FormatInt(res.VideoStartOffset, 10),
						format.HumanBytes(res.BytesWritten),
						"",
					})
				}
			}
			table.Render()

			if failed {
				return ErrFilesFailed
			}
			return nil
		},
	}

	cmd.Flags().String("collision", "", "what to do when the output exists: overwrite, fail or rename (default from COLLISION_POLICY)")
	return cmd
}

func (a *app) newScanCmd() *cobra.Command {
	var recursive, extract bool

	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Classify every photo in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			results, err := a.deps.Scanner.Scan(ctx, args[0], recursive)
			if err != nil {
				return err
			}

			failed := false
			containers := 0
			table := newTable(out, "PATH", "SIZE", "MOTION", "ERROR")
			for _, r := range results {
				if r.Err != nil {
					failed = true
					table.Append([]string{r.Path, format.HumanBytes(r.Size), "", r.Err.Error()})
					continue
				}
				if r.IsContainer {
					containers++
				}
				table.Append([]string{r.Path, format.HumanBytes(r.Size), yesNo(r.IsContainer), ""})
			}
			table.Render()
			fmt.Fprintf(out, "\n%d of %d photos carry a video\n", containers, len(results))

			if extract && containers > 0 {
				extracted, err := a.deps.Scanner.ExtractAll(ctx, results)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				table := newTable(out, "PATH", "OUTPUT", "SIZE", "ERROR")
				for _, e := range extracted {
					switch {
					case e.Err != nil:
						failed = true
						table.Append([]string{e.Path, "", "", e.Err.Error()})
					case e.Result == nil:
						table.Append([]string{e.Path, "no video", "", ""})
					default:
						table.Append([]string{e.Path, e.Result.OutputPath, format.HumanBytes(e.Result.BytesWritten), ""})
					}
				}
				table.Render()
			}

			if failed {
				return ErrFilesFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subdirectories")
	cmd.Flags().BoolVar(&extract, "extract", false, "extract every video found")
	cmd.Flags().Int("workers", 0, "concurrent files (default from SCAN_WORKERS)")
	cmd.Flags().String("collision", "", "what to do when an output exists: overwrite, fail or rename")
	return cmd
}

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch DIR",
		Short: "Extract videos from photos as they are added to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.deps.Watcher.Run(cmd.Context(), args[0])
		},
	}
}

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("starting motionphoto API",
				slog.Int("port", a.cfg.Port),
				slog.String("media_root", a.cfg.MediaRoot),
				slog.Bool("s3_enabled", a.cfg.S3Enabled()),
			)
			return a.deps.Serve(cmd.Context(), fmt.Sprintf(":%d", a.cfg.Port))
		},
	}
}
