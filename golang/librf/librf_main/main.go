package main

import (
	"encoding/json"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/becky93/librf/golang/librf/rfl"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/mat"
)

//decodeConfig reads a json or yaml config file into out. Keys follow the mapstructure tags.
func decodeConfig(srcConfig string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(srcConfig)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading config %s", srcConfig)
	}
	return errors.Wrapf(v.Unmarshal(out), "decoding config %s", srcConfig)
}

//DatasetConfig points either to a csv file or to a pair of npy files.
type DatasetConfig struct {
	FileNameCSV      string `json:"filename_csv" mapstructure:"filename_csv"`
	LabelColumn      string `json:"label_column" mapstructure:"label_column"`
	FileNameFeatures string `json:"filename_features" mapstructure:"filename_features"`
	FileNameLabels   string `json:"filename_labels" mapstructure:"filename_labels"`
}

func (dc DatasetConfig) load() (*rfl.InstanceSet, error) {
	if dc.FileNameCSV != "" {
		log.Print("\ttry to load csv <", dc.FileNameCSV, ">")
		f, err := os.Open(dc.FileNameCSV)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", dc.FileNameCSV)
		}
		defer func() { _ = f.Close() }()
		labelColumn := dc.LabelColumn
		if labelColumn == "" {
			labelColumn = "label"
		}
		return rfl.ReadCSVInstanceSet(f, labelColumn)
	}
	if dc.FileNameLabels == "" {
		features, err := rfl.ReadNpy(dc.FileNameFeatures)
		if err != nil {
			return nil, err
		}
		// unlabeled data: every instance gets label 0, accuracy is meaningless
		h, _ := features.Dims()
		return rfl.NewInstanceSet(features, make([]int, h))
	}
	return rfl.ReadNpyInstanceSet(dc.FileNameFeatures, dc.FileNameLabels)
}

type TrainConfig struct {
	Train              DatasetConfig     `json:"train" mapstructure:"train"`
	FileNameModel      string            `json:"filename_model" mapstructure:"filename_model"`
	FileNameImportance string            `json:"filename_importance" mapstructure:"filename_importance"`
	Forest             rfl.ForestOptions `json:"forest" mapstructure:"forest"`
}

func train(srcConfig string) error {
	var trainConfig TrainConfig
	if err := decodeConfig(srcConfig, &trainConfig); err != nil {
		return err
	}

	log.Println("load train")
	set, err := trainConfig.Train.load()
	if err != nil {
		return err
	}
	log.Infof("%d instances, %d attributes, %d classes", set.Size(), set.NumAttributes(), set.NumClasses())

	clf := rfl.NewRandomForest(set, trainConfig.Forest)
	for ind, tree := range clf.Trees {
		stats := tree.Stats()
		log.Debugf("tree %d: %d active, %d split, %d terminal nodes, vars used %v",
			ind, stats.ActiveNodes, stats.SplitNodes, stats.TerminalNodes, tree.VarsUsed())
	}
	log.Infof("forest oob accuracy %.4f", clf.OOBAccuracy())

	if trainConfig.FileNameImportance != "" {
		seed := trainConfig.Forest.Seed
		if err := dumpImportance(set, clf.VariableImportance(&seed), trainConfig.FileNameImportance); err != nil {
			return err
		}
	}

	if trainConfig.FileNameModel == "" {
		return errors.New("filename_model is not set")
	}
	return clf.Save(trainConfig.FileNameModel)
}

//dumpImportance writes the importance of every used attribute as a json object keyed by attribute name.
func dumpImportance(set *rfl.InstanceSet, importance map[int]float64, fileName string) error {
	named := make(map[string]float64, len(importance))
	for attr, score := range importance {
		name := strconv.Itoa(attr)
		if attr < len(set.AttributeNames) {
			name = set.AttributeNames[attr]
		}
		named[name] = score
	}

	dst, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", fileName)
	}
	defer func() { rfl.HandleError(dst.Close()) }()

	encoder := json.NewEncoder(dst)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(named), "encoding importance")
}

type PredictConfig struct {
	Data               DatasetConfig `json:"data" mapstructure:"data"`
	ModelFileName      string        `json:"filename_model" mapstructure:"filename_model"`
	PredictionFileName string        `json:"filename_target" mapstructure:"filename_target"`
}

func predict(srcConfig string) error {
	var predictConfig PredictConfig
	if err := decodeConfig(srcConfig, &predictConfig); err != nil {
		return err
	}

	set, err := predictConfig.Data.load()
	if err != nil {
		return err
	}
	clf, err := rfl.LoadModel(predictConfig.ModelFileName)
	if err != nil {
		return err
	}
	if err := clf.CheckAttributes(set); err != nil {
		return err
	}

	prediction := mat.NewDense(set.Size(), 1, nil)
	for p := 0; p < set.Size(); p++ {
		prediction.Set(p, 0, float64(clf.Predict(set, p)))
	}
	if predictConfig.Data.FileNameLabels != "" || predictConfig.Data.FileNameCSV != "" {
		log.Infof("testing accuracy %.4f", clf.TestingAccuracy(set))
	}

	dst, err := os.Create(predictConfig.PredictionFileName)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", predictConfig.PredictionFileName)
	}
	defer func() { rfl.HandleError(dst.Close()) }()
	return errors.Wrap(npyio.Write(dst, prediction), "writing prediction")
}

type GraphConfig struct {
	ModelFileName     string `json:"filename_model" mapstructure:"filename_model"`
	FigureType        string `json:"figure_type" mapstructure:"figure_type"`
	PicturesDirectory string `json:"pictures_directory" mapstructure:"pictures_directory"`
	DumpPrefix        string `json:"dump_prefix" mapstructure:"dump_prefix"`
}

func graph(srcConfig string) error {
	var graphConfig GraphConfig
	if err := decodeConfig(srcConfig, &graphConfig); err != nil {
		return err
	}
	if graphConfig.FigureType == "" {
		graphConfig.FigureType = "svg"
	}
	if graphConfig.DumpPrefix == "" {
		graphConfig.DumpPrefix = "tree"
	}

	clf, err := rfl.LoadModel(graphConfig.ModelFileName)
	if err != nil {
		return err
	}
	return clf.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}

func writeMemProfile(fileName string) {
	f, err := os.Create(fileName)
	rfl.HandleError(err)
	defer func() { rfl.HandleError(f.Close()) }()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}

func modeCommand(use, short string, run func(string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(viper.GetString("config"))
		},
	}
}

var rootCmd = &cobra.Command{
	Use:   "librf",
	Short: "random forest of entropy trees",

	// SilenceUsage is an option to silence usage when an error occurs.
	SilenceUsage: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if memprofile := viper.GetString("memprofile"); memprofile != "" {
			writeMemProfile(memprofile)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "librf_config.json", "a config file for the run of the program")
	rootCmd.PersistentFlags().Bool("debug", false, "log every grown tree")
	rootCmd.PersistentFlags().String("memprofile", "", "write memory profile to `file`")

	rootCmd.AddCommand(
		modeCommand("train", "grow a forest and save it", train),
		modeCommand("predict", "predict labels with a saved forest", predict),
		modeCommand("graph", "render every tree of a saved forest", graph),
	)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("librf")
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.WithError(err).Errorf("failed to bind persistent flags. please check the flag settings.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatalf("cannot execute command")
	}
}
