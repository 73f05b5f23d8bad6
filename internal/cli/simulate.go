package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulatePriceA float64
	simulatePriceB float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟两个交易所之间的价差并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePriceA <= 0 || simulatePriceB <= 0 {
			return errors.New("--price-a 与 --price-b 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), decimal.NewFromFloat(simulatePriceA), decimal.NewFromFloat(simulatePriceB))
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePriceA, "price-a", 0, "交易所 A 报价")
	simulateCmd.Flags().Float64Var(&simulatePriceB, "price-b", 0, "交易所 B 报价")
}
