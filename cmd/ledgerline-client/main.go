// Command ledgerline-client is a thin TCP client for exercising a
// running ledgerline-server. It reuses internal/netproto's Encode*
// helpers so the wire format has exactly one implementation.
package main

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/saiputravu/ledgerline/internal/common"
	"github.com/saiputravu/ledgerline/internal/netproto"
)

var serverAddr string

func main() {
	root := &cobra.Command{
		Use:   "ledgerline-client",
		Short: "Submit orders to a running ledgerline-server",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "127.0.0.1:7890", "exchange server address")

	root.AddCommand(placeCommand(), modifyCommand(), cancelCommand(), registerCommand(), logCommand())

	if err := root.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}

func dial() (net.Conn, error) {
	return net.DialTimeout("tcp", serverAddr, 5*time.Second)
}

func placeCommand() *cobra.Command {
	var instrumentID, creatorID, side, orderType string
	var price float64
	var quantity uint64

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Submit a new order",
		RunE: func(cmd *cobra.Command, args []string) error {
			instrument, err := uuid.Parse(instrumentID)
			if err != nil {
				return fmt.Errorf("parsing instrument id: %w", err)
			}
			creator, err := uuid.Parse(creatorID)
			if err != nil {
				return fmt.Errorf("parsing creator id: %w", err)
			}

			msg := netproto.NewOrderMessage{
				InstrumentID: instrument,
				CreatorID:    creator,
				OrderType:    parseOrderType(orderType),
				Side:         parseSide(side),
				Quantity:     quantity,
				CreatedAt:    time.Now().Unix(),
			}
			if msg.OrderType == common.LimitOrder {
				msg.HasPrice = true
				msg.Price = common.NewPrice(price)
			}

			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			_, err = conn.Write(netproto.EncodeNewOrder(msg))
			return err
		},
	}
	cmd.Flags().StringVar(&instrumentID, "instrument", "", "instrument id")
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator id")
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().StringVar(&orderType, "type", "limit", "limit or market")
	cmd.Flags().Float64Var(&price, "price", 0, "limit price")
	cmd.Flags().Uint64Var(&quantity, "qty", 1, "quantity")
	return cmd
}

func modifyCommand() *cobra.Command {
	var instrumentID, orderID string
	var price float64
	var quantity uint64

	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Modify a resting order",
		RunE: func(cmd *cobra.Command, args []string) error {
			instrument, err := uuid.Parse(instrumentID)
			if err != nil {
				return fmt.Errorf("parsing instrument id: %w", err)
			}
			order, err := uuid.Parse(orderID)
			if err != nil {
				return fmt.Errorf("parsing order id: %w", err)
			}

			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			msg := netproto.ModifyOrderMessage{
				InstrumentID: instrument,
				OrderID:      order,
				NewQuantity:  quantity,
				NewPrice:     common.NewPrice(price),
			}
			_, err = conn.Write(netproto.EncodeModifyOrder(msg))
			return err
		},
	}
	cmd.Flags().StringVar(&instrumentID, "instrument", "", "instrument id")
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().Float64Var(&price, "price", 0, "new price")
	cmd.Flags().Uint64Var(&quantity, "qty", 0, "new quantity")
	return cmd
}

func cancelCommand() *cobra.Command {
	var instrumentID, orderID string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a resting order",
		RunE: func(cmd *cobra.Command, args []string) error {
			instrument, err := uuid.Parse(instrumentID)
			if err != nil {
				return fmt.Errorf("parsing instrument id: %w", err)
			}
			order, err := uuid.Parse(orderID)
			if err != nil {
				return fmt.Errorf("parsing order id: %w", err)
			}

			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			_, err = conn.Write(netproto.EncodeCancelOrder(netproto.CancelOrderMessage{
				InstrumentID: instrument,
				OrderID:      order,
			}))
			return err
		},
	}
	cmd.Flags().StringVar(&instrumentID, "instrument", "", "instrument id")
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	return cmd
}

func registerCommand() *cobra.Command {
	var issuerID, name, ticker string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new instrument",
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := uuid.Parse(issuerID)
			if err != nil {
				return fmt.Errorf("parsing issuer id: %w", err)
			}

			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			_, err = conn.Write(netproto.EncodeRegisterInstrument(netproto.RegisterInstrumentMessage{
				InstrumentID: uuid.New(),
				IssuerID:     issuer,
				Name:         name,
				Ticker:       ticker,
			}))
			return err
		},
	}
	cmd.Flags().StringVar(&issuerID, "issuer", "", "issuer participant id")
	cmd.Flags().StringVar(&name, "name", "", "instrument display name")
	cmd.Flags().StringVar(&ticker, "ticker", "", "instrument ticker")
	return cmd
}

func logCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Request a server-side book log",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			_, err = conn.Write(netproto.EncodeLogBook())
			return err
		},
	}
}

func parseSide(s string) common.Side {
	if s == "sell" {
		return common.Sell
	}
	return common.Buy
}

func parseOrderType(s string) common.OrderType {
	if s == "market" {
		return common.MarketOrder
	}
	return common.LimitOrder
}
