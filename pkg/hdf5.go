package coincidence

import (
	"fmt"

	"github.com/jmbenlloch/go-hdf5"
)

type HitHDF5 struct {
	window   uint64
	scin_id  int32
	dummy    uint8
	time     float64
	timeDiff float64
	tot      float64
	energy   float64
	theta    float64
	x        float64
	y        float64
	z        float64
}

type EventHDF5 struct {
	evt_number   int64
	window       uint64
	multiplicity int32
	removed      int32
	event_type   uint8
	time         float64
}

type EventHitHDF5 struct {
	evt_number int64
	scin_id    int32
	time       float64
	tot        float64
	x          float64
	y          float64
	z          float64
}

type LORHDF5 struct {
	evt_number int64
	window     uint64
	scin_a     int32
	scin_b     int32
	accepted   uint8
	tof        float64
	angle      float64
	scatter    float64
	x          float64
	y          float64
	z          float64
}

type TripleHDF5 struct {
	evt_number int64
	window     uint64
	class      uint8
	gap0       float64
	gap1       float64
	gap2       float64
	sum        float64
	diff       float64
}

type RunInfoHDF5 struct {
	run_number int32
	run_id     [STRLEN]byte
}

type ParamsHDF5 struct {
	param [STRLEN]byte
	value float64
}

const STRLEN = 40

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer file_space.Close()

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{32768}
	plist.SetChunk(chunks)
	plist.SetDeflate(compressionLevel)

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowCounter int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, rowCounter)
}

// writeArrayToTable appends the rows after the first rowCounter rows of the
// table. Empty slices are not written.
func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowCounter int) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	// extend
	rowsInFile := uint(rowCounter)
	newsize := []uint{rowsInFile + length}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error resizing table: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{rowsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting hyperslab: %w", err)
	}

	if err := dataset.WriteSubset(data, dataspace, filespace); err != nil {
		return fmt.Errorf("error writing table rows: %w", err)
	}
	return nil
}
