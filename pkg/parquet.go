package readout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

const parquetBatchSize = 1024

// ParquetExporter writes the per-event rows of one run to a Parquet file,
// with the same columns as the counts CSV.
type ParquetExporter struct {
	Filename string

	file   *os.File
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	eventID   *array.Int64Builder
	path      *array.Float64Builder
	dedx      *array.Float64Builder
	produced  *array.Int64Builder
	arrived   *array.Int64Builder
	detected  *array.Int64Builder
	charge    *array.Float64Builder
	current   *array.Float64Builder
	rowCount  int
	RowsTotal int64
	closed    bool
}

func countsSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: CountsHeader[0], Type: arrow.PrimitiveTypes.Int64},
		{Name: CountsHeader[1], Type: arrow.PrimitiveTypes.Float64},
		{Name: CountsHeader[2], Type: arrow.PrimitiveTypes.Float64},
		{Name: CountsHeader[3], Type: arrow.PrimitiveTypes.Int64},
		{Name: CountsHeader[4], Type: arrow.PrimitiveTypes.Int64},
		{Name: CountsHeader[5], Type: arrow.PrimitiveTypes.Int64},
		{Name: CountsHeader[6], Type: arrow.PrimitiveTypes.Float64},
		{Name: CountsHeader[7], Type: arrow.PrimitiveTypes.Float64},
	}, nil)
}

func NewParquetExporter(filename string, codec ParquetCodec) (*ParquetExporter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	schema := countsSchema()
	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(codec.Code),
		parquet.WithDictionaryDefault(false),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, file, writerProps, arrowProps)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	allocator := memory.NewGoAllocator()
	return &ParquetExporter{
		Filename: filename,
		file:     file,
		schema:   schema,
		writer:   writer,
		eventID:  array.NewInt64Builder(allocator),
		path:     array.NewFloat64Builder(allocator),
		dedx:     array.NewFloat64Builder(allocator),
		produced: array.NewInt64Builder(allocator),
		arrived:  array.NewInt64Builder(allocator),
		detected: array.NewInt64Builder(allocator),
		charge:   array.NewFloat64Builder(allocator),
		current:  array.NewFloat64Builder(allocator),
	}, nil
}

// ParquetSink returns a SinkFactory writing photon_counts_run<N>.parquet into dir.
func ParquetSink(dir string, codec ParquetCodec) SinkFactory {
	return func(runNumber int) (EventSink, error) {
		filename := filepath.Join(dir, fmt.Sprintf("photon_counts_run%d.parquet", runNumber))
		return NewParquetExporter(filename, codec)
	}
}

func (p *ParquetExporter) WriteEvent(record EventRecord) error {
	if p.closed {
		return fmt.Errorf("write to closed parquet file %s", p.Filename)
	}
	obs := record.Observables
	p.eventID.Append(int64(record.EventID))
	p.path.Append(record.MuonPath)
	p.dedx.Append(obs.DEdx)
	p.produced.Append(int64(record.PhotonsProduced))
	p.arrived.Append(int64(record.PhotonsArrived))
	p.detected.Append(int64(obs.Detected))
	p.charge.Append(obs.Charge)
	p.current.Append(obs.Current)
	p.rowCount++

	if p.rowCount >= parquetBatchSize {
		return p.flushBatch()
	}
	return nil
}

func (p *ParquetExporter) flushBatch() error {
	if p.rowCount == 0 {
		return nil
	}
	columns := []arrow.Array{
		p.eventID.NewArray(),
		p.path.NewArray(),
		p.dedx.NewArray(),
		p.produced.NewArray(),
		p.arrived.NewArray(),
		p.detected.NewArray(),
		p.charge.NewArray(),
		p.current.NewArray(),
	}
	defer func() {
		for _, column := range columns {
			column.Release()
		}
	}()

	batch := array.NewRecord(p.schema, columns, int64(p.rowCount))
	defer batch.Release()

	if err := p.writer.Write(batch); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	p.RowsTotal += int64(p.rowCount)
	p.rowCount = 0
	return nil
}

func (p *ParquetExporter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.flushBatch(); err != nil {
		errs = append(errs, err)
	}
	if err := p.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close parquet writer: %w", err))
	}
	// The parquet writer may already have closed the file.
	if err := p.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("error closing %s: %w", p.Filename, err))
	}

	p.eventID.Release()
	p.path.Release()
	p.dedx.Release()
	p.produced.Release()
	p.arrived.Release()
	p.detected.Release()
	p.charge.Release()
	p.current.Release()
	return errors.Join(errs...)
}
