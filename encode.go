package dca

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeTransaction writes tx as a single line of JSON.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	b, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("could not encode transaction %q: %w", tx.ID, err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// EncodeTransactions writes all transactions as JSONL, in the given order.
func EncodeTransactions(w io.Writer, txs []Transaction) error {
	bw := bufio.NewWriter(w)
	for _, tx := range txs {
		if err := EncodeTransaction(bw, tx); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeTransactions decodes transactions from a stream of JSONL data.
// Empty lines are skipped.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	var txs []Transaction
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var tx Transaction
		if err := json.Unmarshal(lineBytes, &tx); err != nil {
			return nil, fmt.Errorf("could not decode transaction on line %d %q: %w", line, string(lineBytes), err)
		}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}
