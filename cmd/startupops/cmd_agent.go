package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"startupops/internal/agents"
	"startupops/internal/stage"
)

var agentFlags struct {
	kind      string
	inputJSON string
	inputFile string
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Work with stage agents directly",
}

var agentInvokeCmd = &cobra.Command{
	Use:   "invoke STAGE",
	Short: "Invoke one stage agent with a JSON input and print its result",
	Long: "Invoke one stage agent (product, tech, marketing, finance or advisor) outside\n" +
		"a pipeline run. The input is read from --input-json, --input-file or stdin ('-').",
	Args: cobra.ExactArgs(1),
	RunE: withApp(runAgentInvoke),
}

func init() {
	f := agentInvokeCmd.Flags()
	f.StringVar(&agentFlags.kind, "agent", "", "Agent kind (overrides config)")
	f.StringVar(&agentFlags.inputJSON, "input-json", "", "Stage input as a JSON object")
	f.StringVar(&agentFlags.inputFile, "input-file", "", "Path to a JSON input file, or - for stdin")

	agentCmd.AddCommand(agentInvokeCmd)
}

func runAgentInvoke(cmd *cobra.Command, args []string, a *app) error {
	name, err := stage.ParseName(args[0])
	if err != nil {
		return err
	}

	raw := []byte(agentFlags.inputJSON)
	switch {
	case agentFlags.inputFile == "-":
		raw, err = io.ReadAll(cmd.InOrStdin())
	case agentFlags.inputFile != "":
		raw, err = os.ReadFile(agentFlags.inputFile)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	input := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("parse input: %w", err)
		}
	}

	agent, err := a.agent(agentFlags.kind)
	if err != nil {
		return err
	}
	th, err := a.throttle()
	if err != nil {
		return err
	}
	result, err := agents.Throttled(agent, th).Invoke(cmd.Context(), name, input)
	if err != nil {
		return err
	}
	if err := stage.Validate(name, result); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
