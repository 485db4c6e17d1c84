package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"item-diversity/internal/catalog"
)

var (
	mythicHeader   = []string{"Mythic", "Champion", "Queue", "GameTimeSeconds"}
	itemHeader     = []string{"Item", "Mythic", "Champion", "Match", "N_Items", "Queue", "GameTimeSeconds"}
	mythicIDHeader = []string{"Id", "Item"}
	championHeader = []string{"Id", "IdName", "Name"}
)

// FileNames are the output file names inside the output directory
type FileNames struct {
	Mythics   string
	Items     string
	MythicIDs string
	Champions string
}

// NewFileNames returns the file names for one region and collection window
func NewFileNames(region, from, to string) FileNames {
	return FileNames{
		Mythics:   fmt.Sprintf("mythics_%s_%s_%s.csv", region, from, to),
		Items:     fmt.Sprintf("legendary_and_mythics_%s_%s_%s.csv", region, from, to),
		MythicIDs: "mythic_ids.csv",
		Champions: "champion_ids.csv",
	}
}

// WriteCSV writes the mythic table, the combined table and the mythic id
// reference table. dir must already exist.
func WriteCSV(dir string, names FileNames, t *Tables, cat *catalog.Catalog) error {
	if err := checkDir(dir); err != nil {
		return err
	}

	mythicRows := make([][]string, 0, len(t.Mythics))
	for _, r := range t.Mythics {
		mythicRows = append(mythicRows, []string{
			strconv.Itoa(r.Mythic),
			strconv.Itoa(r.Champion),
			strconv.Itoa(r.Queue),
			strconv.Itoa(r.GameTimeSeconds),
		})
	}
	if err := writeCSVFile(filepath.Join(dir, names.Mythics), mythicHeader, mythicRows); err != nil {
		return err
	}

	itemRows := make([][]string, 0, len(t.Items))
	for _, r := range t.Items {
		itemRows = append(itemRows, []string{
			strconv.Itoa(r.Item),
			boolFlag(r.Mythic),
			strconv.Itoa(r.Champion),
			strconv.Itoa(r.Match),
			strconv.Itoa(r.NItems),
			strconv.Itoa(r.Queue),
			strconv.Itoa(r.GameTimeSeconds),
		})
	}
	if err := writeCSVFile(filepath.Join(dir, names.Items), itemHeader, itemRows); err != nil {
		return err
	}

	if err := WriteMythicIDs(dir, names.MythicIDs, cat); err != nil {
		return err
	}

	log.Printf("[Export] Wrote %d mythic rows and %d item rows to %s", len(t.Mythics), len(t.Items), dir)
	return nil
}

// WriteMythicIDs writes the id -> name table of every mythic item
func WriteMythicIDs(dir, name string, cat *catalog.Catalog) error {
	if err := checkDir(dir); err != nil {
		return err
	}
	items := cat.MythicItems()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{strconv.Itoa(item.ID), item.Name})
	}
	return writeCSVFile(filepath.Join(dir, name), mythicIDHeader, rows)
}

// WriteChampionCSV writes the champion id table
func WriteChampionCSV(dir, name string, champions []catalog.Champion) error {
	if err := checkDir(dir); err != nil {
		return err
	}
	rows := make([][]string, 0, len(champions))
	for _, c := range champions {
		rows = append(rows, []string{strconv.Itoa(c.ID), c.IDName, c.Name})
	}
	return writeCSVFile(filepath.Join(dir, name), championHeader, rows)
}

// checkDir fails unless dir is an existing directory. It is never created.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}
	return nil
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	bw := bufio.NewWriterSize(f, 64*1024)
	w := csv.NewWriter(bw)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
