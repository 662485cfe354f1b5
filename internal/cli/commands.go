package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type PrepareCmd struct{ build BuildInfo }

func NewPrepareCmd(build BuildInfo) *PrepareCmd {
	return &PrepareCmd{build: build}
}

func (c *PrepareCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Scrub the raw extracts into prepared CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, c.build)
			if err != nil {
				return err
			}
			defer s.Close()

			prepared, err := s.pipeline.Prepare(s.ctx)
			if err != nil {
				s.log.Error("Failed to prepare data", "error", err)
				return err
			}
			printPrepareSummary(cmd.OutOrStdout(), prepared)
			return nil
		},
	}
}

type LoadCmd struct{ build BuildInfo }

func NewLoadCmd(build BuildInfo) *LoadCmd {
	return &LoadCmd{build: build}
}

func (c *LoadCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Replace the warehouse contents with the prepared CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, c.build)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.pipeline.Load(s.ctx)
			if err != nil {
				s.log.Error("Failed to load warehouse", "error", err)
				return err
			}
			printLoadSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

type CubeCmd struct{ build BuildInfo }

func NewCubeCmd(build BuildInfo) *CubeCmd {
	return &CubeCmd{build: build}
}

func (c *CubeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cube",
		Short: "Build the configured OLAP cubes from the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			preview, err := cmd.Flags().GetInt("preview")
			if err != nil {
				return fmt.Errorf("failed to get preview flag: %w", err)
			}
			s, err := newSession(cmd, c.build)
			if err != nil {
				return err
			}
			defer s.Close()

			cubes, err := s.pipeline.Cubes(s.ctx)
			if err != nil {
				s.log.Error("Failed to build cubes", "error", err)
				return err
			}
			printCubeSummary(cmd.OutOrStdout(), cubes)
			if preview > 0 {
				for _, res := range cubes {
					fmt.Fprintln(cmd.OutOrStdout(), res.Name)
					printPreview(cmd.OutOrStdout(), res.Cube, preview)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("preview", 0, "print the first n rows of each cube")
	return cmd
}

type RunCmd struct{ build BuildInfo }

func NewRunCmd(build BuildInfo) *RunCmd {
	return &RunCmd{build: build}
}

func (c *RunCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Prepare, load and build cubes in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, c.build)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.pipeline.Run(s.ctx)
			if err != nil {
				s.log.Error("Pipeline failed", "error", err)
				return err
			}
			out := cmd.OutOrStdout()
			printPrepareSummary(out, res.Prepared)
			printLoadSummary(out, res.Load)
			printCubeSummary(out, res.Cubes)
			return nil
		},
	}
}
