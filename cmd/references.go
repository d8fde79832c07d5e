package cmd

import (
	"github.com/shouni/go-chapter-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// referencesCmd は、登場要素の設定画とシードだけを確定するのだ。
var referencesCmd = &cobra.Command{
	Use:   "references",
	Short: "登場要素ファイルの設定画とシードを生成するのだ。",
	Long: `登場要素の JSON を読み込み、画像が未設定の要素だけ設定画を生成して、
画像の URL とシードを書き込んだ JSON を保存するのだ。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pipeline.ExecuteReferences(cmd.Context(), loadConfig())
	},
}

func init() {
	referencesCmd.Flags().StringVarP(&opts.EntitiesFile, "entities", "e", "", "登場要素の JSON なのだ（例: examples/entities.json）。")
	_ = referencesCmd.MarkFlagRequired("entities")
	referencesCmd.Flags().StringVar(&opts.ReferenceOut, "out", "", "保存先（デフォルトは OUTPUT_DIR/entities.json）なのだ。")
}
