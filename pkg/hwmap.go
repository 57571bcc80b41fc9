package rawdata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

// HardwareInfo is one row of the hardware map: a readout source and where
// it sits in the detector.
type HardwareInfo struct {
	DROSourceID uint32 `db:"DROSourceID"`
	DetID       uint16 `db:"DetID"`
	CrateID     uint16 `db:"CrateID"`
	SlotID      uint16 `db:"SlotID"`
	StreamID    uint16 `db:"StreamID"`
}

func (h HardwareInfo) GeoID() GeoID {
	return GeoID{DetID: h.DetID, CrateID: h.CrateID, SlotID: h.SlotID, StreamID: h.StreamID}
}

// PopulateGeoIDMap adds one pair per row under the detector readout
// subsystem. Repeated rows produce repeated pairs.
func PopulateGeoIDMap(hwInfos []HardwareInfo, m SourceIDGeoIDMap) {
	for _, hw := range hwInfos {
		m.Add(NewSourceID(DetectorReadout, hw.DROSourceID), hw.GeoID().Pack())
	}
}

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

func LoadHardwareMapFromDB(db *sqlx.DB, runNumber uint64) ([]HardwareInfo, error) {
	query := "SELECT DROSourceID, DetID, CrateID, SlotID, StreamID FROM HardwareMap WHERE MinRun <= %d and MaxRun >= %d ORDER BY DROSourceID"
	query = fmt.Sprintf(query, runNumber, runNumber)

	if configuration.Verbosity > 0 {
		logger.Info("Hardware map read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s", query)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	hwInfos := []HardwareInfo{}
	for rows.Next() {
		result := HardwareInfo{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		hwInfos = append(hwInfos, result)
	}
	return hwInfos, rows.Err()
}

// ParseHardwareMap reads a whitespace separated table with the columns
// DROSourceID DetID CrateID SlotID StreamID. Blank lines and lines
// starting with '#' are skipped, as is a header row.
func ParseHardwareMap(r io.Reader) ([]HardwareInfo, error) {
	hwInfos := []HardwareInfo{}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("hardware map line %d: need 5 columns, got %d", lineNumber, len(fields))
		}
		if lineNumber == 1 && fields[0] == "DROSourceID" {
			continue
		}
		var values [5]uint64
		for i := range values {
			bits := 16
			if i == 0 {
				bits = 32
			}
			v, err := strconv.ParseUint(fields[i], 0, bits)
			if err != nil {
				return nil, fmt.Errorf("hardware map line %d column %d: %w", lineNumber, i+1, err)
			}
			values[i] = v
		}
		hwInfos = append(hwInfos, HardwareInfo{
			DROSourceID: uint32(values[0]),
			DetID:       uint16(values[1]),
			CrateID:     uint16(values[2]),
			SlotID:      uint16(values[3]),
			StreamID:    uint16(values[4]),
		})
	}
	return hwInfos, scanner.Err()
}

// LoadGeoIDMap builds the file-level geo-id map from the configured
// hardware map: a text table if one is named, the database otherwise, and
// nothing when the database is disabled.
func LoadGeoIDMap(config Configuration) (SourceIDGeoIDMap, error) {
	m := SourceIDGeoIDMap{}
	var hwInfos []HardwareInfo
	switch {
	case config.HWMapFile != "":
		f, err := os.Open(config.HWMapFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		hwInfos, err = ParseHardwareMap(f)
		if err != nil {
			return nil, err
		}
	case !config.NoDB:
		db, err := ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		defer db.Close()
		hwInfos, err = LoadHardwareMapFromDB(db, config.RunNumber)
		if err != nil {
			errMessage := fmt.Errorf("error getting hardware map from database: %w", err)
			logger.Error(errMessage.Error())
			return nil, errMessage
		}
	}
	PopulateGeoIDMap(hwInfos, m)
	return m, nil
}
