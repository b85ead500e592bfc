package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/itiky/educhain-dao/storage"
)

const (
	FlagFilePath   = "file-path"
	FlagNumCourses = "courses"
)

// GetGenerateCmd returns generate seed data command.
func GetGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate seed courses",
		Run: func(cmd *cobra.Command, args []string) {
			// Parse inputs
			filePath, err := cmd.Flags().GetString(FlagFilePath)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagFilePath, err)
			}
			numCourses, err := cmd.Flags().GetInt(FlagNumCourses)
			if err != nil {
				log.Fatalf("%s flag: %v", FlagNumCourses, err)
			}

			// Work
			if err := storage.GenAndSaveSeed(filePath, numCourses); err != nil {
				log.Fatalf("gen failed: %v", err)
			}
		},
	}
	cmd.Flags().String(FlagFilePath, "./seed.yaml", "(optional) output file path")
	cmd.Flags().Int(FlagNumCourses, 10, "(optional) number of courses")

	return cmd
}

func init() {
	rootCmd.AddCommand(GetGenerateCmd())
}
